// Package mqtt wraps the Eclipse Paho client for the controller bus.
//
// The bus carries three kinds of traffic:
//   - remote latches (huntsman/event/{uri}/{type}), retained, written by
//     the controller and by out-of-process hardware drivers
//   - controller output (huntsman/core/state, huntsman/core/say)
//   - presence (huntsman/system/status), including the Last Will
//
// Connection loss is handled by paho's auto-reconnect; tracked
// subscriptions are restored on every reconnect.
package mqtt
