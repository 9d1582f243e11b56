package nginx

import "testing"

func TestParseAddr(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *Addr
	}{
		{
			name: "bare port",
			args: []string{"80"},
			want: &Addr{Port: "80"},
		},
		{
			name: "host and port",
			args: []string{"192.168.1.5:8080"},
			want: &Addr{Host: "192.168.1.5", Port: "8080"},
		},
		{
			name: "bare host keeps empty port",
			args: []string{"127.0.0.1"},
			want: &Addr{Host: "127.0.0.1"},
		},
		{
			name: "hostname",
			args: []string{"myhost"},
			want: &Addr{Host: "myhost"},
		},
		{
			name: "wildcard host",
			args: []string{"*:85"},
			want: &Addr{Host: "*", Port: "85"},
		},
		{
			name: "ssl parameter",
			args: []string{"443", "ssl"},
			want: &Addr{Port: "443", SSL: true},
		},
		{
			name: "default_server parameter",
			args: []string{"80", "default_server"},
			want: &Addr{Port: "80", Default: true},
		},
		{
			name: "legacy default parameter",
			args: []string{"80", "default"},
			want: &Addr{Port: "80", Default: true},
		},
		{
			name: "ipv6 any host",
			args: []string{"[::]:80"},
			want: &Addr{Host: "::", Port: "80", IPv6: true},
		},
		{
			name: "ipv6 without port",
			args: []string{"[2001:db8::1]"},
			want: &Addr{Host: "2001:db8::1", IPv6: true},
		},
		{
			name: "ipv6 with everything",
			args: []string{"[::]:443", "ssl", "ipv6only=on"},
			want: &Addr{Host: "::", Port: "443", IPv6: true, SSL: true, IPv6Only: true},
		},
		{
			name: "unknown parameters ignored",
			args: []string{"80", "http2", "backlog=511"},
			want: &Addr{Port: "80"},
		},
		{
			name: "unix socket skipped",
			args: []string{"unix:/var/run/nginx.sock"},
			want: nil,
		},
		{
			name: "empty args",
			args: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAddr(tt.args)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseAddr(%v) = %v, want %v", tt.args, got, tt.want)
			}
			if got == nil {
				return
			}
			if *got != *tt.want {
				t.Errorf("ParseAddr(%v) = %+v, want %+v", tt.args, *got, *tt.want)
			}
		})
	}
}

func TestAddr_String(t *testing.T) {
	tests := []struct {
		name string
		addr Addr
		want string
	}{
		{
			name: "bare port",
			addr: Addr{Port: "80"},
			want: "80",
		},
		{
			name: "host and port",
			addr: Addr{Host: "1.2.3.4", Port: "80"},
			want: "1.2.3.4:80",
		},
		{
			name: "host without port",
			addr: Addr{Host: "127.0.0.1"},
			want: "127.0.0.1",
		},
		{
			name: "ssl suffix",
			addr: Addr{Port: "443", SSL: true},
			want: "443 ssl",
		},
		{
			name: "ipv6 with flags",
			addr: Addr{Host: "::", Port: "443", IPv6: true, SSL: true, IPv6Only: true},
			want: "[::]:443 ssl ipv6only=on",
		},
		{
			name: "default not part of canonical form",
			addr: Addr{Port: "80", Default: true},
			want: "80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddr_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Addr
		want bool
	}{
		{
			name: "identical",
			a:    Addr{Host: "1.2.3.4", Port: "80"},
			b:    Addr{Host: "1.2.3.4", Port: "80"},
			want: true,
		},
		{
			name: "empty host equals star",
			a:    Addr{Port: "80"},
			b:    Addr{Host: "*", Port: "80"},
			want: true,
		},
		{
			name: "empty host equals 0.0.0.0",
			a:    Addr{Port: "80"},
			b:    Addr{Host: "0.0.0.0", Port: "80"},
			want: true,
		},
		{
			name: "ipv6 spelling variants",
			a:    Addr{Host: "2001:db8:0:0::1", Port: "80", IPv6: true},
			b:    Addr{Host: "2001:db8::1", Port: "80", IPv6: true},
			want: true,
		},
		{
			name: "empty port differs from explicit 80",
			a:    Addr{Host: "127.0.0.1"},
			b:    Addr{Host: "127.0.0.1", Port: "80"},
			want: false,
		},
		{
			name: "ssl differs",
			a:    Addr{Port: "443", SSL: true},
			b:    Addr{Port: "443"},
			want: false,
		},
		{
			name: "ipv6only differs",
			a:    Addr{Host: "::", Port: "443", IPv6: true, IPv6Only: true},
			b:    Addr{Host: "::", Port: "443", IPv6: true},
			want: false,
		},
		{
			name: "default ignored",
			a:    Addr{Port: "80", Default: true},
			b:    Addr{Port: "80"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddr_ServesHTTPPort(t *testing.T) {
	if !(Addr{Port: "80"}).ServesHTTPPort("80") {
		t.Error("explicit port 80 should serve port 80")
	}
	if !(Addr{Host: "127.0.0.1"}).ServesHTTPPort("80") {
		t.Error("empty port should serve the implicit HTTP port")
	}
	if (Addr{Port: "8080"}).ServesHTTPPort("80") {
		t.Error("port 8080 should not serve port 80")
	}
}

func TestAddr_WithPort(t *testing.T) {
	a := Addr{Host: "::", Port: "80", IPv6: true}
	b := a.WithPort("443")
	if b.Port != "443" || b.Host != "::" || !b.IPv6 {
		t.Errorf("WithPort() = %+v, want host/ipv6 kept with port 443", b)
	}
	if a.Port != "80" {
		t.Error("WithPort() should not mutate the receiver")
	}
}
