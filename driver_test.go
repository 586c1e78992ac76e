package ojp

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openjp-go/ojp/internal/endpoint"
)

// noopDialer builds a lazy *grpc.ClientConn (grpc.NewClient never blocks on
// connect) so Open can be exercised without a real server.
func noopDialer(_ context.Context, ep endpoint.Endpoint, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(ep.Host+":0", dialOpts...)
}

func TestOpenParsesLocatorAndStripsDownstream(t *testing.T) {
	driver, err := Open("jdbc:ojp[localhost:1059]_h2:mem:test", nil, nil, noopDialer)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer driver.Close()

	if driver.Downstream() != "jdbc:h2:mem:test" {
		t.Errorf("Downstream() = %q, want %q", driver.Downstream(), "jdbc:h2:mem:test")
	}
	if driver.Profile() != "default" {
		t.Errorf("Profile() = %q, want %q", driver.Profile(), "default")
	}
}

func TestOpenResolvesNamedProfile(t *testing.T) {
	driver, err := Open("jdbc:ojp[a:1059,b:1059>fast]_postgresql://x/y", nil, nil, noopDialer)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer driver.Close()

	if driver.Profile() != "fast" {
		t.Errorf("Profile() = %q, want %q", driver.Profile(), "fast")
	}
	if driver.Downstream() != "jdbc:postgresql://x/y" {
		t.Errorf("Downstream() = %q, want %q", driver.Downstream(), "jdbc:postgresql://x/y")
	}
}

func TestOpenRejectsInvalidLocator(t *testing.T) {
	if _, err := Open("not-a-locator", nil, nil, noopDialer); err == nil {
		t.Fatal("expected error for invalid locator")
	}
}

func TestDriverEventsExposesHealthTransitions(t *testing.T) {
	driver, err := Open("jdbc:ojp[localhost:1059]_h2:mem:test", nil, nil, noopDialer)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer driver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, cleanup := driver.Events().Subscribe(ctx)
	defer cleanup()

	driver.registry.MarkUnhealthy(driver.registry.Set().All()[0])

	select {
	case ev := <-ch:
		if ev.Healthy {
			t.Errorf("expected unhealthy event, got healthy=true")
		}
	default:
		t.Fatal("expected a buffered health event to be available immediately")
	}
}
