package mac

/*------------------------------------------------------------------
 *
 * Purpose: Announce a simulated/debug node on the LAN so a test harness or
 *		operator console can find it without a pre-shared address.
 *
 * Description: Grounded directly on the teacher's src/dns_sd.go, which
 *		announces its KISS-over-TCP service with github.com/brutella/
 *		dnssd. This is not part of the over-the-air MAC at all (spec
 *		section 9 names it as a simulation/debug aid only, never
 *		reachable from production over-the-air traffic); it exists so
 *		cmd/'s simulation harness can be pointed at by name instead of
 *		by a hardcoded port.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

const discoveryServiceType = "_dosmac._tcp"

// Announcer advertises one node's debug console over mDNS/DNS-SD.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// Announce registers name on port and starts responding to mDNS queries in
// the background, returning an Announcer the caller should Close on
// shutdown. A zero-value name falls back to the node's link address.
func Announce(name string, addr LinkAddr, port int) (*Announcer, error) {
	if name == "" {
		name = fmt.Sprintf("dosmac-%s", addr.String())
	}

	cfg := dnssd.Config{
		Name: name,
		Type: discoveryServiceType,
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating dns-sd service: %w", err)
	}

	resp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("creating dns-sd responder: %w", err)
	}
	if _, err := resp.Add(svc); err != nil {
		return nil, fmt.Errorf("adding dns-sd service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{responder: resp, cancel: cancel}
	go func() {
		_ = resp.Respond(ctx)
	}()
	return a, nil
}

// Close stops responding to mDNS queries.
func (a *Announcer) Close() {
	a.cancel()
}
