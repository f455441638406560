// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package udipe

import (
	"fmt"
	"net"
)

// Family discriminates an Address's union. Family == 0
// requests a context-appropriate default.
type Family byte

const (
	FamilyDefault Family = 0
	FamilyIPv4    Family = 4
	FamilyIPv6    Family = 6
)

// Address is a union of IPv4-sockaddr and IPv6-sockaddr; Family is the
// discriminator.
type Address struct {
	Family Family
	IP     net.IP
	Port   uint16
	Zone   string // IPv6 only
}

// UDPAddr converts to the *net.UDPAddr the socket I/O capability expects.
func (a Address) UDPAddr() *net.UDPAddr {
	if a.Family == FamilyDefault && a.IP == nil {
		return nil
	}
	return &net.UDPAddr{IP: a.IP, Port: int(a.Port), Zone: a.Zone}
}

func (a Address) resolvedFamily() Family {
	if a.Family != FamilyDefault {
		return a.Family
	}
	if a.IP.To4() != nil {
		return FamilyIPv4
	}
	if a.IP != nil {
		return FamilyIPv6
	}
	return FamilyDefault
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// sameFamily reports whether local and remote share an address family, a
// precondition connect options must satisfy.
func sameFamily(local, remote Address) bool {
	lf, rf := local.resolvedFamily(), remote.resolvedFamily()
	if lf == FamilyDefault || rf == FamilyDefault {
		return true
	}
	return lf == rf
}
