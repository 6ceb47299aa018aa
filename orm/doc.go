/*
Package orm provides the persistent monotonic Sequence counter used to
number outbound cross-domain messages.
*/
package orm
