package security

import (
	"strings"
	"testing"
)

// TestSanitizeHTML_AllowedElements は記事本文で使う要素が通過することを検証する。
func TestSanitizeHTML_AllowedElements(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"見出し", "<h2>見出し</h2>", "<h2>見出し</h2>"},
		{"段落", "<p>段落</p>", "<p>段落</p>"},
		{"リスト", "<ul><li>項目</li></ul>", "<ul><li>項目</li></ul>"},
		{"引用", "<blockquote>引用</blockquote>", "<blockquote>引用</blockquote>"},
		{"コード", "<pre><code>go test ./...</code></pre>", "<pre><code>go test ./...</code></pre>"},
		{"強調", "<strong>太字</strong><em>斜体</em>", "<strong>太字</strong><em>斜体</em>"},
		{"表", "<table><tr><td>1</td></tr></table>", "<table><tr><td>1</td></tr></table>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeHTML(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeHTML_RemovesDangerousContent はスクリプトやイベント属性が除去されることを検証する。
func TestSanitizeHTML_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		notContain []string
	}{
		{"script", `<p>本文</p><script>alert("xss")</script>`, []string{"<script", "alert"}},
		{"iframe", `<iframe src="https://evil.example.com"></iframe>`, []string{"<iframe", "evil"}},
		{"style", `<style>body{display:none}</style><p>x</p>`, []string{"<style", "display"}},
		{"onclick", `<p onclick="steal()">クリック</p>`, []string{"onclick", "steal"}},
		{"img onerror", `<img src="https://example.com/a.png" onerror="alert(1)">`, []string{"onerror", "alert"}},
		{"javascript href", `<a href="javascript:alert(1)">link</a>`, []string{"javascript:"}},
		{"style属性", `<p style="background:url(javascript:alert(1))">x</p>`, []string{"style=", "javascript"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeHTML(tt.input)
			for _, s := range tt.notContain {
				if strings.Contains(got, s) {
					t.Errorf("SanitizeHTML(%q) = %q, should not contain %q", tt.input, got, s)
				}
			}
		})
	}
}

// TestSanitizeHTML_ImgHTTPSOnly はimgのsrcがhttpsに限定されることを検証する。
func TestSanitizeHTML_ImgHTTPSOnly(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeHTML(`<img src="https://cdn.example.com/a.png" alt="図">`)
	if !strings.Contains(got, `src="https://cdn.example.com/a.png"`) || !strings.Contains(got, `alt="図"`) {
		t.Errorf("https img should be kept, got %q", got)
	}

	for _, src := range []string{"http://cdn.example.com/a.png", "data:image/png;base64,AAAA", "ftp://example.com/a.png"} {
		got := sanitizer.SanitizeHTML(`<img src="` + src + `">`)
		if strings.Contains(got, src) {
			t.Errorf("img src %q should be removed, got %q", src, got)
		}
	}
}

// TestSanitizeHTML_ExternalLinks は外部リンクにtargetとrelが付与されることを検証する。
func TestSanitizeHTML_ExternalLinks(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeHTML(`<a href="https://example.com" target="_self">外部</a>`)
	for _, want := range []string{`href="https://example.com"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("SanitizeHTML() = %q, should contain %q", got, want)
		}
	}
	if strings.Contains(got, "_self") {
		t.Errorf("existing target should be replaced, got %q", got)
	}
}

// TestSanitizeHTML_RelativeLinks はサイト内の相対リンクが許可されることを検証する。
func TestSanitizeHTML_RelativeLinks(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.SanitizeHTML(`<a href="/blog/getting-started">続きを読む</a>`)
	if !strings.Contains(got, `href="/blog/getting-started"`) {
		t.Errorf("relative link should be kept, got %q", got)
	}
}

// TestSanitizeHTML_EmptyAndIdempotent は空入力と冪等性を検証する。
func TestSanitizeHTML_EmptyAndIdempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.SanitizeHTML(""); got != "" {
		t.Errorf("SanitizeHTML(\"\") = %q, want empty", got)
	}

	input := `<p>AI <a href="https://example.com">tools</a></p><script>x()</script>`
	once := sanitizer.SanitizeHTML(input)
	twice := sanitizer.SanitizeHTML(once)
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

// TestStripTags はタグがすべて除去されることを検証する。
func TestStripTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Plain title", "Plain title"},
		{"  <b>Bold</b> title  ", "Bold title"},
		{`<script>alert(1)</script>Safe`, "Safe"},
		{"What's new & next", "What's new & next"},
	}
	for _, tt := range tests {
		if got := sanitizer.StripTags(tt.input); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
