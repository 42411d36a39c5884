package shared

import (
	"fmt"
	"regexp"
	"strconv"
)

var addrRe = regexp.MustCompile(`^([^:]*):(\d+)$`)

// ParseAddr parses a listening address in the format "host:port". The host
// can be empty or "*" to bind to all interfaces. Port 0 is accepted and
// requests an ephemeral port.
func ParseAddr(s string) (host string, port int, err error) {
	matches := addrRe.FindStringSubmatch(s)
	if len(matches) != 3 {
		err = parsingError(s)
		return
	}

	host = matches[1]
	if host == "*" { // also counts as all interfaces
		host = ""
	}

	port, err = strconv.Atoi(matches[2])
	if err != nil || port < 0 || port > 65535 {
		err = parsingError(s)
		return
	}

	return
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'host:port' with port 0-65535", s)
}
