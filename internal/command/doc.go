// Package command sends structured commands to the selected telescope and
// waits for the correlated response.
//
// Every call checks that a device is selected and connected, encodes a
// command envelope with a fresh correlation id, and waits up to the
// command's timeout. Outcomes are distinct:
//
//   - success: *Result
//   - ErrTimeout: no answer in time; inconclusive, the device may still act
//   - ErrConnectionLost: the channel dropped or the device was switched
//   - *RejectedError: the device refused; message shown verbatim
//   - ErrSendFailed: the frame could not be written
//   - ErrAbandoned: the caller's context ended after the frame went out;
//     inconclusive like a timeout
//
// Idempotent commands (stop, park, scenery mode) are re-sent after a write
// failure. Nothing is re-sent after a timeout.
//
// While a command is waiting, an identical call joins it instead of sending
// a duplicate. Stop is exempt and always goes out. A joined command outlives
// any one caller's context: it completes for the rest, and is only dropped
// once every caller has stopped waiting.
package command
