package dataprotect

import (
	"bytes"
	"os"
	"os/user"
	"strconv"
)

var machineIDFiles = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// CurrentScope identifies this machine and user: machine id (or hostname),
// uid and username.
func CurrentScope() []byte {
	var b bytes.Buffer
	b.WriteString(machineID())
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(os.Getuid()))
	b.WriteByte(0)
	if u, err := user.Current(); err == nil {
		b.WriteString(u.Uid)
		b.WriteByte(0)
		b.WriteString(u.Username)
	}
	return b.Bytes()
}

func machineID() string {
	for _, f := range machineIDFiles {
		if data, err := os.ReadFile(f); err == nil {
			if id := string(bytes.TrimSpace(data)); id != "" {
				return id
			}
		}
	}
	host, _ := os.Hostname()
	return "host:" + host
}
