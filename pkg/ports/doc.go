/*
Package ports allocates and persists network ports for the node's exposed
services.

Assignments are (node, pid, key, port) tuples stored in the coordination
store, with a host-side index so the used-port set spans every service
sharing a host. Allocation starts from the locally configured value (or the
service default) and increments past used ports; an existing assignment is
always returned unchanged, so repeated allocation is idempotent.
*/
package ports
