// Package pkg holds the logging and error vocabulary shared by the link
// pipelines, the HALs, the host runtime and the device emulator.
//
// # Logging
//
// Records go through one [log/slog] logger and carry a component tag so
// output from the transmit side, the receive side and the HALs can be told
// apart. The default level is warn; the pipeline stages log protocol
// events at debug.
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.SetLogFormat(pkg.LogFormatJSON)
//	pkg.LogDebug(pkg.ComponentRX, "crc mismatch", "register", reg)
//
// [Logger] returns a logger bound to one component and link name.
//
// # Errors
//
// Operations return the sentinel errors in this package, possibly wrapped;
// match them with [errors.Is]. Receive pipeline faults are reported as an
// [ErrorKind], which maps back to its sentinel through its Error method:
//
//	h.SetOnError(func(k pkg.ErrorKind) {
//	    if errors.Is(k.Error(), pkg.ErrCRC) {
//	        // the last command packet is bad
//	    }
//	})
package pkg
