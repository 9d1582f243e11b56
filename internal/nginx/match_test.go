package nginx

import "testing"

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		names    []string
		wantName string
		wantRank MatchRank
	}{
		{
			name:     "exact match",
			target:   "example.com",
			names:    []string{"example.com", "www.example.com"},
			wantName: "example.com",
			wantRank: RankExact,
		},
		{
			name:     "leading dot name is exact for the bare domain",
			target:   "example.com",
			names:    []string{".example.com"},
			wantName: ".example.com",
			wantRank: RankExact,
		},
		{
			name:     "shortest exact wins",
			target:   "example.com",
			names:    []string{".example.com", "example.com"},
			wantName: "example.com",
			wantRank: RankExact,
		},
		{
			name:     "leading dot matches subdomain as wildcard",
			target:   "www.example.com",
			names:    []string{".example.com"},
			wantName: ".example.com",
			wantRank: RankWildcardStart,
		},
		{
			name:     "star wildcard matches subdomain",
			target:   "www.example.com",
			names:    []string{"*.example.com"},
			wantName: "*.example.com",
			wantRank: RankWildcardStart,
		},
		{
			name:     "star wildcard covers several labels",
			target:   "a.b.example.com",
			names:    []string{"*.example.com"},
			wantName: "*.example.com",
			wantRank: RankWildcardStart,
		},
		{
			name:     "star wildcard does not match the bare domain",
			target:   "example.com",
			names:    []string{"*.example.com"},
			wantName: "",
			wantRank: RankNoMatch,
		},
		{
			name:     "longest leading wildcard wins",
			target:   "test.www.example.com",
			names:    []string{".example.com", "*.www.example.com"},
			wantName: "*.www.example.com",
			wantRank: RankWildcardStart,
		},
		{
			name:     "trailing wildcard",
			target:   "example.com",
			names:    []string{"example.*"},
			wantName: "example.*",
			wantRank: RankWildcardEnd,
		},
		{
			name:     "trailing wildcard needs a leading label match",
			target:   "www.example.com",
			names:    []string{"example.*"},
			wantName: "",
			wantRank: RankNoMatch,
		},
		{
			name:     "leading beats trailing wildcard",
			target:   "example.example.com",
			names:    []string{"example.*", ".example.com"},
			wantName: ".example.com",
			wantRank: RankWildcardStart,
		},
		{
			name:     "regex match",
			target:   "www.testdomain.com",
			names:    []string{`~^(www\.)?(testdomain\.com)$`},
			wantName: `~^(www\.)?(testdomain\.com)$`,
			wantRank: RankRegex,
		},
		{
			name:     "first regex wins in declaration order",
			target:   "www.example.com",
			names:    []string{`~^www\.`, `~^www`},
			wantName: `~^www\.`,
			wantRank: RankRegex,
		},
		{
			name:     "regex is anchored at the start",
			target:   "www.example.com",
			names:    []string{`~example`},
			wantName: "",
			wantRank: RankNoMatch,
		},
		{
			name:     "exact beats regex",
			target:   "www.example.com",
			names:    []string{`~^www\.`, "www.example.com"},
			wantName: "www.example.com",
			wantRank: RankExact,
		},
		{
			name:     "bare star matches everything",
			target:   "anything.at.all",
			names:    []string{"*"},
			wantName: "*",
			wantRank: RankWildcardStart,
		},
		{
			name:     "invalid regex matches nothing",
			target:   "example.com",
			names:    []string{"~[unclosed"},
			wantName: "",
			wantRank: RankNoMatch,
		},
		{
			name:     "no names",
			target:   "example.com",
			names:    nil,
			wantName: "",
			wantRank: RankNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName, gotRank, _ := BestMatch(tt.target, tt.names)
			if gotName != tt.wantName || gotRank != tt.wantRank {
				t.Errorf("BestMatch(%q, %v) = (%q, %v), want (%q, %v)",
					tt.target, tt.names, gotName, gotRank, tt.wantName, tt.wantRank)
			}
		})
	}
}

func TestBestMatch_RegexTieCount(t *testing.T) {
	names := []string{`~^www\.`, `~^www`}
	_, rank, n := BestMatch("www.example.com", names)
	if rank != RankRegex {
		t.Fatalf("rank = %v, want %v", rank, RankRegex)
	}
	if n != 2 {
		t.Errorf("matched count = %d, want 2", n)
	}
}

func TestIsWildcardDomain(t *testing.T) {
	if !IsWildcardDomain("*.example.com") {
		t.Error("*.example.com should be a wildcard domain")
	}
	if IsWildcardDomain("www.example.com") {
		t.Error("www.example.com should not be a wildcard domain")
	}
	if IsWildcardDomain("example.*") {
		t.Error("example.* should not be a wildcard domain")
	}
}

func TestRegexNames(t *testing.T) {
	names := []string{"example.com", `~^www\.`, "*.example.net", "~^ww", "~(bad"}
	got := RegexNames("www.example.com", names)
	want := []string{`~^www\.`, "~^ww"}
	if len(got) != len(want) {
		t.Fatalf("RegexNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RegexNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWildcardCondition(t *testing.T) {
	symbol, operand := WildcardCondition("example.com")
	if symbol != "=" || operand != "example.com" {
		t.Errorf("WildcardCondition(example.com) = (%q, %q), want (=, example.com)", symbol, operand)
	}

	symbol, operand = WildcardCondition("*.example.com")
	if symbol != "~" {
		t.Errorf("symbol = %q, want ~", symbol)
	}
	want := `^[^.]+\.example\.com$`
	if operand != want {
		t.Errorf("operand = %q, want %q", operand, want)
	}
}
