// Package shipper buffers measurements on the device and ships them to the
// collector in batches.
//
// Shipper.Log renders the timestamp and appends one entry to the buffer; it
// never touches the network. Shipper.Flush drains the whole buffer, serializes
// it (JSONSerializer), and posts it through a Transport (HTTPTransport). When
// the transport cannot obtain a response the batch is restored to the front
// of the buffer, so entries logged during the failed attempt stay behind it
// and global logging order survives any number of retries. Flush reports the
// outcome as a bool; diagnostics go to slog.
//
// Shipper.Run drives Flush from a ticker, skipping ticks while the optional
// link check reports the network down, and makes a final bounded flush on
// shutdown. There is no backoff: the next tick is the retry.
//
// Delivery is at-least-once. HTTPTransport counts any HTTP response as
// dispatched unless Require2xx is set. Every entry carries a sequence number
// ("seq") that, with the X-Instance-ID header, identifies it across retries.
package shipper
