// Package redisserver serves the vault devices over RESP, the Redis
// wire protocol, so any Redis client can drive them.
//
// Commands:
//
//	PING [msg]                 QUIT
//	AUTH <secret>              elevates the connection to privileged
//	OPEN <dev> [RDONLY|WRONLY|RDWR]   -> handle
//	CLOSE <h>
//	READ <h> <count>           -> bulk, empty at end of data
//	WRITE <h> <data>           -> bytes written, may be short
//	SEEK <h> <offset> [SET|CUR|END]   -> new position
//	IOCTL <h> <command> [arg]  -> [result, out]
//	STAT <dev>                 -> field/value array
//	INFO                       -> server and device summary
//
// Handles are small integers scoped to the connection, reused lowest
// first and closed when the connection ends. Closing a connection
// cancels any device lock wait it is blocked in.
package redisserver
