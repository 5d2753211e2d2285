package authxero_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authxero "github.com/PhillipGimmi/go-authxero"
	"github.com/stretchr/testify/assert"
)

func TestProberReachableDomain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := authxero.NewDomainProber(authxero.SimpleConfig{ProbeTimeout: time.Second})
	assert.True(t, prober.IsReachable(context.Background(), server.URL))
}

func TestProberRedirectCountsAsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	prober := authxero.NewDomainProber(authxero.SimpleConfig{ProbeTimeout: time.Second})
	assert.True(t, prober.IsReachable(context.Background(), server.URL))
}

func TestProberServerErrorIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := authxero.NewDomainProber(authxero.SimpleConfig{ProbeTimeout: time.Second})
	assert.False(t, prober.IsReachable(context.Background(), server.URL))
}

func TestProberUnreachableAddress(t *testing.T) {
	prober := authxero.NewDomainProber(authxero.SimpleConfig{ProbeTimeout: time.Second})
	assert.False(t, prober.IsReachable(context.Background(), "http://127.0.0.1:1"))
}

func TestProberHangingServerRespectsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	prober := authxero.NewDomainProber(authxero.SimpleConfig{ProbeTimeout: 200 * time.Millisecond})

	start := time.Now()
	reachable := prober.IsReachable(context.Background(), server.URL)
	elapsed := time.Since(start)

	assert.False(t, reachable)
	assert.Less(t, elapsed, time.Second, "probe must give up at the deadline")
}
