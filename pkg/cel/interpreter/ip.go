package interpreter

import (
	"encoding/json"
	"fmt"
	"net/netip"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

// Type names of the network values.
const (
	IPTypeName   = "net.IP"
	CIDRTypeName = "net.CIDR"
)

// IP is an IPv4 or IPv6 address.
type IP struct {
	addr netip.Addr
}

// ParseIP parses an address in dotted or colon notation. IPv4-mapped IPv6
// addresses are unmapped.
func ParseIP(s string) (*IP, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid IP address %q", s)
	}
	if addr.Zone() != "" {
		return nil, fmt.Errorf("IP address %q must not have a zone", s)
	}
	return &IP{addr: addr.Unmap()}, nil
}

// Addr returns the underlying address.
func (ip *IP) Addr() netip.Addr {
	return ip.addr
}

// TypeName implements value.Opaque.
func (ip *IP) TypeName() string {
	return IPTypeName
}

func (ip *IP) String() string {
	return ip.addr.String()
}

// EqualOpaque implements value.OpaqueEqualer.
func (ip *IP) EqualOpaque(other value.Opaque) bool {
	x, ok := other.(*IP)
	return ok && x.addr == ip.addr
}

// MarshalJSON renders the address as a JSON string.
func (ip *IP) MarshalJSON() ([]byte, error) {
	return json.Marshal(ip.addr.String())
}

// CallFunction implements value.MethodProvider.
func (ip *IP) CallFunction(name string, call value.Call) (value.Value, bool, error) {
	var b bool
	switch name {
	case "family":
		if err := noArgs(call); err != nil {
			return nil, true, err
		}
		if ip.addr.Is4() {
			return value.Int(4), true, nil
		}
		return value.Int(6), true, nil
	case "isIPv4":
		b = ip.addr.Is4()
	case "isIPv6":
		b = ip.addr.Is6()
	case "isLoopback":
		b = ip.addr.IsLoopback()
	case "isPrivate":
		b = ip.addr.IsPrivate()
	case "isUnspecified":
		b = ip.addr.IsUnspecified()
	case "isGlobalUnicast":
		b = ip.addr.IsGlobalUnicast()
	case "isLinkLocalUnicast":
		b = ip.addr.IsLinkLocalUnicast()
	default:
		return nil, false, nil
	}
	if err := noArgs(call); err != nil {
		return nil, true, err
	}
	return value.Bool(b), true, nil
}

// CIDR is an address prefix such as 10.0.0.0/8.
type CIDR struct {
	prefix netip.Prefix
}

// ParseCIDR parses a prefix in address/bits notation. Host bits are kept, so
// the original address is available through ip().
func ParseCIDR(s string) (*CIDR, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q", s)
	}
	if p.Addr().Is4In6() {
		p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid CIDR %q", s)
		}
	}
	return &CIDR{prefix: p}, nil
}

// Prefix returns the underlying prefix.
func (c *CIDR) Prefix() netip.Prefix {
	return c.prefix
}

// TypeName implements value.Opaque.
func (c *CIDR) TypeName() string {
	return CIDRTypeName
}

func (c *CIDR) String() string {
	return c.prefix.String()
}

// EqualOpaque implements value.OpaqueEqualer.
func (c *CIDR) EqualOpaque(other value.Opaque) bool {
	x, ok := other.(*CIDR)
	return ok && x.prefix == c.prefix
}

// MarshalJSON renders the prefix as a JSON string.
func (c *CIDR) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.prefix.String())
}

// Contains reports whether addr lies in the prefix.
func (c *CIDR) Contains(addr netip.Addr) bool {
	return c.prefix.Contains(addr.Unmap())
}

// CallFunction implements value.MethodProvider.
func (c *CIDR) CallFunction(name string, call value.Call) (value.Value, bool, error) {
	switch name {
	case "containsIP":
		arg, err := singleArg(call)
		if err != nil {
			return nil, true, err
		}
		ip, err := toIP(arg)
		if err != nil {
			return nil, true, err
		}
		return value.Bool(c.Contains(ip.addr)), true, nil
	case "containsCIDR":
		arg, err := singleArg(call)
		if err != nil {
			return nil, true, err
		}
		other, err := toCIDR(arg)
		if err != nil {
			return nil, true, err
		}
		ok := other.prefix.Bits() >= c.prefix.Bits() && c.prefix.Contains(other.prefix.Addr())
		return value.Bool(ok), true, nil
	case "ip":
		if err := noArgs(call); err != nil {
			return nil, true, err
		}
		return value.NewObject(&IP{addr: c.prefix.Addr()}), true, nil
	case "masked":
		if err := noArgs(call); err != nil {
			return nil, true, err
		}
		return value.NewObject(&CIDR{prefix: c.prefix.Masked()}), true, nil
	case "prefixLength":
		if err := noArgs(call); err != nil {
			return nil, true, err
		}
		return value.Int(c.prefix.Bits()), true, nil
	}
	return nil, false, nil
}

func noArgs(call value.Call) error {
	if call.ArgCount() != 0 {
		return celerrors.InvalidArgumentCount(0, call.ArgCount())
	}
	return nil
}

func singleArg(call value.Call) (value.Value, error) {
	if call.ArgCount() != 1 {
		return nil, celerrors.InvalidArgumentCount(1, call.ArgCount())
	}
	return call.Arg(0)
}

// toIP accepts an IP value or its string form.
func toIP(v value.Value) (*IP, error) {
	switch x := value.Materialize(v).(type) {
	case value.Object:
		if ip, ok := x.Opaque().(*IP); ok {
			return ip, nil
		}
	case value.String:
		return ParseIP(string(x))
	}
	return nil, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), IPTypeName)
}

// toCIDR accepts a CIDR value or its string form.
func toCIDR(v value.Value) (*CIDR, error) {
	switch x := value.Materialize(v).(type) {
	case value.Object:
		if c, ok := x.Opaque().(*CIDR); ok {
			return c, nil
		}
	case value.String:
		return ParseCIDR(string(x))
	}
	return nil, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), CIDRTypeName)
}

func installNetwork(c *Context) {
	c.AddFunction("ip", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		s, err := asString(ops[0])
		if err != nil {
			return nil, err
		}
		ip, err := ParseIP(s)
		if err != nil {
			return nil, call.Error(err.Error())
		}
		return value.NewObject(ip), nil
	})
	c.AddFunction("cidr", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		s, err := asString(ops[0])
		if err != nil {
			return nil, err
		}
		p, err := ParseCIDR(s)
		if err != nil {
			return nil, call.Error(err.Error())
		}
		return value.NewObject(p), nil
	})
	c.AddFunction("isIP", func(call *FunctionCall) (value.Value, error) {
		ops, err := call.ExpectOperands(1, 1)
		if err != nil {
			return nil, err
		}
		s, err := asString(ops[0])
		if err != nil {
			return nil, err
		}
		_, perr := ParseIP(s)
		return value.Bool(perr == nil), nil
	})
}
