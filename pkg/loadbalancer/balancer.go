package loadbalancer

import (
	"net/http"
	"strings"
	"sync"
)

// LoadBalancer round-robins across backend base URLs. The gateway uses one
// when reports_url names more than one instance.
type LoadBalancer struct {
	servers []string
	mu      sync.Mutex
	current int
}

// New builds a balancer from a comma-separated server list. Empty entries are
// dropped; nil is returned when nothing usable remains.
func New(serverList string) *LoadBalancer {
	var servers []string
	for _, s := range strings.Split(serverList, ",") {
		s = strings.TrimSuffix(strings.TrimSpace(s), "/")
		if s != "" {
			servers = append(servers, s)
		}
	}
	if len(servers) == 0 {
		return nil
	}
	return &LoadBalancer{servers: servers}
}

func (lb *LoadBalancer) NextServer() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	server := lb.servers[lb.current]
	lb.current = (lb.current + 1) % len(lb.servers)
	return server
}

func (lb *LoadBalancer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, lb.NextServer()+r.RequestURI, http.StatusTemporaryRedirect)
}
