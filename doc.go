/*
Package wsmanager contains a per connection hub server and a client for it.
Every connection to the server is bound to its own hub instance, which lives exactly as long as the connection.

Basics

A client sends invocations over a message based, bidirectional connection (websockets, or length prefixed frames
over any net.Conn). An invocation names a method of the hub and carries its arguments.
The server answers every frame with exactly one result: the return value of the method or an error with one of the
kinds MalformedMessage, MethodNotFound, ArgumentMismatch or InvocationError.
Hubs may also push invocations to their own client, to a single other client, to all other clients or to all clients.
Frames are encoded by a Codec. JSONCodec (text) and MessagePackCodec (binary) are available.

Server

A Server is created with NewServer() for one type of hub. The hub type is set with the option UseHub, SimpleHubFactory,
HubFactory or WithHubActivator. A HubActivator creates the hub when the connection is accepted and releases it
after the connection has been closed. Activators for factories, DI scopes and pools are available.
To serve a connection, call server.Serve(connection) in a goroutine. Serve ends when the connection is closed or the
servers context is canceled.
To serve websockets, use server.MapHTTP(), which connects the server with a path in an http.ServeMux or one of the
routers in github.com/philippseith/wsmanager/router.

Client

A Client is created with NewClient() for a connection, usually dialed with DialWebSocket().
Client.Invoke sends an invocation and waits for its result. Invocations pushed by the hub are received from Client.Pushes().

Supported Hub method parameter and return types

All methods with serializable types as parameters and return types are supported.
Methods may take a context.Context as first parameter. It is canceled when the connection closes.
Methods with multiple return values are supported, the client receives them as array.
Methods returning a single receiving channel are awaited: the first value sent on the channel is the result.
Hubs implementing MethodProvider register their methods in a MethodTable and are served without reflection.
cmd/hubgen generates the MethodProvider implementation for hubs.

Hub methods of one connection are called one after another, in the order the invocations were received.
*/
package wsmanager
