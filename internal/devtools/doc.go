// Package devtools implements the client side of the devtools protocol: it
// ships styled console output from a running application to an inspection
// server over a persistent websocket, without ever blocking the
// application.
//
// # Architecture
//
// The client is built around one session per connection:
//
//   - Client: the public surface (Connect, Log, Disconnect, IsConnected)
//   - logQueue: a bounded FIFO decoupling log producers from the network;
//     producers never block, overflow is counted as spillover
//   - sender: goroutine draining the queue and writing one frame per record
//   - listener: goroutine reading server frames and applying display
//     geometry updates to the capture surface
//
// Delivery is best effort. When the queue fills, new records are dropped
// and counted; once room opens up again, a single client_spillover frame
// tells the server how many were lost. There is no retry and no automatic
// reconnection — after a transport failure the embedding application
// releases the broken session with Disconnect and decides if and when to
// call Connect again.
//
// # Basic Usage
//
//	client := devtools.NewClient("127.0.0.1", 8081)
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    // server not running; the app keeps working without devtools
//	    return
//	}
//	defer client.Disconnect()
//
//	client.Log("hello from", os.Args[0])
//
// Log records the caller's file and line automatically. Use LogAt when the
// call site is tracked elsewhere.
package devtools
