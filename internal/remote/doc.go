// Package remote is the streaming, cancellable operation layer against the
// compute service. A TableProxy builds one immutable Request per operation;
// a Client submits it over its own websocket and streams partial results
// into a Receiver until exactly one terminal state arrives. Builders do no
// I/O, so requests can be constructed and inspected without a connection.
package remote
