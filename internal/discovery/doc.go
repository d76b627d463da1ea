// Package discovery advertises and finds listening head units over mDNS.
//
// A head unit started with `headunit listen` registers a "_headunit._tcp"
// service so phone bridges on the same network can find its port without
// configuration. The TXT record carries the engine version, the protocol
// version and, for WebSocket mode, the upgrade path.
//
// # Usage Example
//
//	adv, err := discovery.Advertise("Headunit Revived", 5277, map[string]string{
//	    discovery.TxtVersion:  version.Version,
//	    discovery.TxtProtocol: "1.2",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
// A Scanner browses for the same service type; `headunit discover` lists the
// head units that answer.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Peers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
