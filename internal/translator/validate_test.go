package translator

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		lang, source, translated string
		want                     bool
	}{
		{"en", "", "", true},
		{"en", "", "something", false},
		{"en", "北京下雪了", "", false},
		{"en", "北京下雪了", "It is snowing in Beijing", true},
		{"en", "北京下雪了", "北京下雪了", false},
		{"en", "iPhone发布会", "iPhone发布会", false},
		{"fr", "巴黎奥运会", "Jeux olympiques de Paris", true},
		{"de", "赞", "Daumen hoch", true},
		{"ja", "北京下雪了", "北京で雪が降った", true},
		{"ja", "北京下雪了", "It snowed in Beijing", false},
		{"ja", "苹果发布iPhone 16 Pro Max新品", "AppleがiPhone 16 Pro Maxを発表", true},
		{"ko", "北京下雪了", "베이징에 눈이 내렸다", true},
		{"ko", "北京下雪了", "Пекин", false},
		{"ru", "北京下雪了", "В Пекине выпал снег", true},
		{"ru", "北京下雪了", "Beijing snow", false},
		{"ar", "北京下雪了", "تساقط الثلوج في بكين", true},
		{"ar", "北京下雪了", "Beijing", false},
		{"en", "2024", "2024", true},
		{"en", "北京下雪了", "1.", false},
		{"en", "雪", "Here is the translation you asked for, it means snow in English", false},
	}
	for _, c := range cases {
		if got := Validate(c.lang, c.source, c.translated); got != c.want {
			t.Errorf("Validate(%q, %q, %q) = %v, want %v", c.lang, c.source, c.translated, got, c.want)
		}
	}
}

func TestLanguages(t *testing.T) {
	got := Languages([]string{"EN", "ja", "xx", "en", " ar "})
	if len(got) != 3 {
		t.Fatalf("Languages = %+v", got)
	}
	if got[0].Code != "en" || got[1].Code != "ja" || got[2].Code != "ar" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(DefaultLanguages) != 8 {
		t.Fatalf("expected 8 default languages, got %d", len(DefaultLanguages))
	}
}
