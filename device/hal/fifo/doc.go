// Package fifo provides the device end of the FIFO link.
//
// It opens the named pipes a host FIFO HAL created in its link directory,
// reading host_to_device and writing device_to_host, with the framing of
// [github.com/ardnew/softcxp/host/hal/fifo]. Start the host first so the
// pipes exist:
//
//	port := fifo.New("/tmp/cxp-link")
//	dev := device.New(port, device.DefaultConfig())
//	if err := dev.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Stop()
package fifo
