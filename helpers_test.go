package hxc

import (
	"strconv"
	"time"
)

func itoa(port uint16) string {
	return strconv.Itoa(int(port))
}

func timeoutCh() <-chan time.Time {
	return time.After(2 * time.Second)
}
