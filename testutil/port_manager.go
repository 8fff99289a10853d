package testutil

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"
)

var (
	portManagerInstance *portManager
	once                sync.Once
)

// portManager hands out host ports for containers started by parallel test
// packages so fixed bindings do not collide.
type portManager struct {
	usedPorts map[int]bool
	mu        sync.Mutex
	minPort   int
	maxPort   int
	rng       *rand.Rand
}

func getPortManager() *portManager {
	once.Do(func() {
		portManagerInstance = &portManager{
			usedPorts: make(map[int]bool),
			minPort:   15000,
			maxPort:   25000,
			rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		}
	})
	return portManagerInstance
}

func (pm *portManager) reservePort() (int, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for attempts := 0; attempts < 50; attempts++ {
		port := pm.minPort + pm.rng.Intn(pm.maxPort-pm.minPort+1)
		if pm.usedPorts[port] || !isPortFree(port) {
			continue
		}
		pm.usedPorts[port] = true
		return port, nil
	}

	return 0, fmt.Errorf("failed to find available port after 50 attempts")
}

func (pm *portManager) releasePort(port int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	delete(pm.usedPorts, port)
}

func isPortFree(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
