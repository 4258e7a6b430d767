package interpreter

import (
	"testing"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

type stdlibCase struct {
	name     string
	expr     string
	want     value.Value
	wantKind celerrors.ErrorKind
}

func runStdlibCases(t *testing.T, tests []stdlibCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalString(t, tt.expr, nil)
			if tt.wantKind != "" {
				kind, _ := celerrors.KindOf(err)
				if kind != tt.wantKind {
					t.Fatalf("Resolve(%q) error = %v, want %s", tt.expr, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.expr, err)
			}
			if !value.Equal(got, tt.want) {
				t.Errorf("Resolve(%q) = %s, want %s", tt.expr, value.Format(got), value.Format(tt.want))
			}
		})
	}
}

func TestStdlib_Strings(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "contains", expr: "'hello'.contains('ell')", want: value.True},
		{name: "contains global", expr: "contains('hello', 'z')", want: value.False},
		{name: "startsWith", expr: "'gpt-4o'.startsWith('gpt-')", want: value.True},
		{name: "endsWith", expr: "'gpt-4o'.endsWith('4o')", want: value.True},
		{name: "matches", expr: "'abc123'.matches('^[a-z]+\\\\d+$')", want: value.True},
		{name: "matches global", expr: "matches('abc', 'z')", want: value.False},
		{name: "lowerAscii", expr: "'HeLLo É'.lowerAscii()", want: value.String("hello É")},
		{name: "upperAscii", expr: "'hello'.upperAscii()", want: value.String("HELLO")},
		{name: "trim", expr: "'  x  '.trim()", want: value.String("x")},
		{name: "split", expr: "'a,b,c'.split(',')", want: strs("a", "b", "c")},
		{name: "split limit", expr: "'a,b,c'.split(',', 2)", want: strs("a", "b,c")},
		{name: "replace", expr: "'aaa'.replace('a', 'b')", want: value.String("bbb")},
		{name: "replace limit", expr: "'aaa'.replace('a', 'b', 2)", want: value.String("bba")},
		{name: "join", expr: "['a', 'b'].join('-')", want: value.String("a-b")},
		{name: "join without separator", expr: "['a', 'b'].join()", want: value.String("ab")},
		{name: "join non-string", expr: "[1].join()", wantKind: celerrors.KindUnexpectedType},
		{name: "indexOf", expr: "'héllo'.indexOf('l')", want: value.Int(2)},
		{name: "indexOf offset", expr: "'hello'.indexOf('l', 3)", want: value.Int(3)},
		{name: "indexOf missing", expr: "'hello'.indexOf('z')", want: value.Int(-1)},
		{name: "indexOf bad offset", expr: "'hello'.indexOf('l', 9)", wantKind: celerrors.KindIndexOutOfBounds},
		{name: "lastIndexOf", expr: "'héllo'.lastIndexOf('l')", want: value.Int(3)},
		{name: "substring", expr: "'héllo'.substring(1, 3)", want: value.String("él")},
		{name: "substring to end", expr: "'hello'.substring(3)", want: value.String("lo")},
		{name: "substring out of range", expr: "'hello'.substring(2, 9)", wantKind: celerrors.KindIndexOutOfBounds},
	})
}

func TestStdlib_Conversions(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "int from string", expr: "int('42')", want: value.Int(42)},
		{name: "int from double truncates", expr: "int(2.9)", want: value.Int(2)},
		{name: "int from uint", expr: "int(7u)", want: value.Int(7)},
		{name: "int overflow", expr: "int(18446744073709551615u)", wantKind: celerrors.KindOverflow},
		{name: "int from bad string", expr: "int('x')", wantKind: celerrors.KindConversionError},
		{name: "uint from int", expr: "uint(3)", want: value.UInt(3)},
		{name: "double from int", expr: "double(1)", want: value.Float(1)},
		{name: "double from string", expr: "double('1.5')", want: value.Float(1.5)},
		{name: "string from int", expr: "string(42)", want: value.String("42")},
		{name: "string from double", expr: "string(1.5)", want: value.String("1.5")},
		{name: "string from bytes", expr: "string(b'abc')", want: value.String("abc")},
		{name: "string from invalid utf8", expr: "string(b'\\xff')", wantKind: celerrors.KindConversionError},
		{name: "string from ip", expr: "string(ip('10.0.0.1'))", want: value.String("10.0.0.1")},
		{name: "string from list", expr: "string([1])", wantKind: celerrors.KindConversionError},
		{name: "bool from string", expr: "bool('true')", want: value.True},
		{name: "bytes from string", expr: "bytes('a') == b'a'", want: value.True},
		{name: "dyn", expr: "dyn(1) == 1", want: value.True},
		{name: "type int", expr: "type(1)", want: value.String("int")},
		{name: "type double", expr: "type(1.0)", want: value.String("double")},
		{name: "type opaque", expr: "type(ip('::1'))", want: value.String(IPTypeName)},
	})
}

func TestStdlib_Time(t *testing.T) {
	const ts = "timestamp('2024-03-05T10:20:30.250Z')"
	runStdlibCases(t, []stdlibCase{
		{name: "full year", expr: ts + ".getFullYear()", want: value.Int(2024)},
		{name: "month is zero based", expr: ts + ".getMonth()", want: value.Int(2)},
		{name: "date", expr: ts + ".getDate()", want: value.Int(5)},
		{name: "day of month is zero based", expr: ts + ".getDayOfMonth()", want: value.Int(4)},
		{name: "day of week", expr: ts + ".getDayOfWeek()", want: value.Int(2)},
		{name: "day of year", expr: ts + ".getDayOfYear()", want: value.Int(64)},
		{name: "hours", expr: ts + ".getHours()", want: value.Int(10)},
		{name: "hours with offset", expr: ts + ".getHours('+02:00')", want: value.Int(12)},
		{name: "hours with zone", expr: ts + ".getHours('UTC')", want: value.Int(10)},
		{name: "minutes", expr: ts + ".getMinutes()", want: value.Int(20)},
		{name: "seconds", expr: ts + ".getSeconds()", want: value.Int(30)},
		{name: "milliseconds", expr: ts + ".getMilliseconds()", want: value.Int(250)},
		{name: "bad zone", expr: ts + ".getHours('+99:00')", wantKind: celerrors.KindFunctionError},
		{name: "duration hours", expr: "duration('90m').getHours()", want: value.Int(1)},
		{name: "duration minutes", expr: "duration('1h30m').getMinutes()", want: value.Int(90)},
		{name: "duration milliseconds", expr: "duration('1.5s').getMilliseconds()", want: value.Int(1500)},
		{name: "duration has no year", expr: "duration('1s').getFullYear()", wantKind: celerrors.KindNoSuchOverload},
		{name: "unix seconds", expr: "timestamp(0) == timestamp('1970-01-01T00:00:00Z')", want: value.True},
		{name: "difference", expr: "timestamp('2024-01-01T00:00:00Z') - timestamp('2023-12-31T00:00:00Z') == duration('24h')", want: value.True},
		{name: "add", expr: "timestamp('2024-01-01T00:00:00Z') + duration('1h') > timestamp('2024-01-01T00:30:00Z')", want: value.True},
		{name: "bad timestamp", expr: "timestamp('yesterday')", wantKind: celerrors.KindConversionError},
		{name: "bad duration", expr: "duration('soon')", wantKind: celerrors.KindConversionError},
	})
}

func TestStdlib_Encoding(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "base64 encode", expr: "base64.encode('hello')", want: value.String("aGVsbG8=")},
		{name: "base64 encode bytes", expr: "base64.encode(b'hi')", want: value.String("aGk=")},
		{name: "base64 decode", expr: "string(base64.decode('aGVsbG8='))", want: value.String("hello")},
		{name: "base64 decode unpadded", expr: "string(base64.decode('aGk'))", want: value.String("hi")},
		{name: "base64 decode invalid", expr: "base64.decode('!!')", wantKind: celerrors.KindFunctionError},
		{name: "json parse", expr: "json.parse('{\"a\": [1, 2]}').a[1] == 2", want: value.True},
		{name: "json parse invalid", expr: "json.parse('{')", wantKind: celerrors.KindFunctionError},
		{name: "json stringify", expr: "json.stringify({'a': [1, true, null]})", want: value.String(`{"a":[1,true,null]}`)},
	})
}

func TestStdlib_Optional(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "of has value", expr: "optional.of(1).hasValue()", want: value.True},
		{name: "none has no value", expr: "optional.none().hasValue()", want: value.False},
		{name: "value", expr: "optional.of('x').value()", want: value.String("x")},
		{name: "none value fails", expr: "optional.none().value()", wantKind: celerrors.KindFunctionError},
		{name: "orValue present", expr: "optional.of(1).orValue(2)", want: value.Int(1)},
		{name: "orValue absent", expr: "optional.none().orValue(2)", want: value.Int(2)},
		{name: "orValue is lazy", expr: "optional.of(1).orValue(missing)", want: value.Int(1)},
		{name: "or", expr: "optional.none().or(optional.of(3)).value()", want: value.Int(3)},
		{name: "ofNonZeroValue zero", expr: "optional.ofNonZeroValue('').hasValue()", want: value.False},
		{name: "ofNonZeroValue set", expr: "optional.ofNonZeroValue([1]).hasValue()", want: value.True},
		{name: "equality", expr: "optional.of(1) == optional.of(1)", want: value.True},
		{name: "none equality", expr: "optional.none() == optional.of(1)", want: value.False},
	})
}

func TestStdlib_Regex(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "matches", expr: "regex('^a+$').matches('aaa')", want: value.True},
		{name: "extract group", expr: "regex('(\\\\d+)-x').extract('id 12-x')", want: value.String("12")},
		{name: "extract whole", expr: "regex('a+').extract('baab')", want: value.String("aa")},
		{name: "extract none", expr: "regex('z').extract('abc')", want: value.NullValue},
		{name: "extractAll", expr: "regex('a.').extractAll('abacad')", want: strs("ab", "ac", "ad")},
		{name: "replace", expr: "regex('a').replace('banana', 'o')", want: value.String("bonono")},
		{name: "replace groups", expr: "regex('(\\\\w+)@').replace('me@x', '$1 at ')", want: value.String("me at x")},
		{name: "invalid pattern", expr: "regex('(')", wantKind: celerrors.KindFunctionError},
		{name: "wrong arity", expr: "regex('a').matches()", wantKind: celerrors.KindInvalidArgumentCount},
	})
}

func TestStdlib_Network(t *testing.T) {
	runStdlibCases(t, []stdlibCase{
		{name: "isIP valid", expr: "isIP('10.0.0.1')", want: value.True},
		{name: "isIP invalid", expr: "isIP('nope')", want: value.False},
		{name: "family v4", expr: "ip('10.0.0.1').family()", want: value.Int(4)},
		{name: "family v6", expr: "ip('::1').family()", want: value.Int(6)},
		{name: "mapped v4", expr: "ip('::ffff:10.0.0.1').isIPv4()", want: value.True},
		{name: "private", expr: "ip('192.168.1.1').isPrivate()", want: value.True},
		{name: "loopback", expr: "ip('127.0.0.1').isLoopback()", want: value.True},
		{name: "unspecified", expr: "ip('0.0.0.0').isUnspecified()", want: value.True},
		{name: "invalid ip", expr: "ip('300.1.1.1')", wantKind: celerrors.KindFunctionError},
		{name: "contains ip", expr: "cidr('10.0.0.0/8').containsIP(ip('10.1.2.3'))", want: value.True},
		{name: "contains ip string", expr: "cidr('10.0.0.0/8').containsIP('11.0.0.1')", want: value.False},
		{name: "contains cidr", expr: "cidr('10.0.0.0/8').containsCIDR('10.1.0.0/16')", want: value.True},
		{name: "contains wider cidr", expr: "cidr('10.1.0.0/16').containsCIDR('10.0.0.0/8')", want: value.False},
		{name: "prefix length", expr: "cidr('10.0.0.0/8').prefixLength()", want: value.Int(8)},
		{name: "cidr ip", expr: "string(cidr('10.1.2.3/8').ip())", want: value.String("10.1.2.3")},
		{name: "masked", expr: "string(cidr('10.1.2.3/8').masked())", want: value.String("10.0.0.0/8")},
		{name: "invalid cidr", expr: "cidr('10.0.0.0/99')", wantKind: celerrors.KindFunctionError},
		{name: "bad argument", expr: "cidr('10.0.0.0/8').containsIP(1)", wantKind: celerrors.KindUnexpectedType},
	})
}
