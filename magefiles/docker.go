// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// container describes a database the integration suites run against.
type container struct {
	name     string
	image    string
	hostPort int
	port     int
	env      []string
}

var (
	mongoContainer = container{
		name:     "vento-test-mongo",
		image:    "docker.io/library/mongo:7",
		hostPort: 27018,
		port:     27017,
	}
	postgresContainer = container{
		name:     "vento-test-postgres",
		image:    "docker.io/library/postgres:16-alpine",
		hostPort: 54329,
		port:     5432,
		env:      []string{"POSTGRES_USER=vento", "POSTGRES_PASSWORD=vento", "POSTGRES_DB=vento"},
	}
	testContainers = []container{mongoContainer, postgresContainer}
)

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// startContainer replaces any previous container of the same name and
// starts c detached.
func startContainer(rt string, c container) error {
	removeContainer(rt, c)
	fmt.Fprintf(os.Stderr, "Starting %s (%s)...\n", c.name, c.image)
	args := []string{"run", "-d", "--name", c.name,
		"-p", "127.0.0.1:" + strconv.Itoa(c.hostPort) + ":" + strconv.Itoa(c.port)}
	for _, e := range c.env {
		args = append(args, "-e", e)
	}
	args = append(args, c.image)
	cmd := exec.Command(rt, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// removeContainer force-removes c. Errors are ignored because the
// container may not exist.
func removeContainer(rt string, c container) {
	_ = exec.Command(rt, "rm", "-f", c.name).Run()
}

// waitForPort polls until something accepts TCP connections on the local
// port. Databases need a moment after the port opens, so it pauses once
// more before returning.
func waitForPort(port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			time.Sleep(2 * time.Second)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", addr)
}
