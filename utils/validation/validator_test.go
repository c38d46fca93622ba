package validation

import "testing"

func TestIsYouTubeURL(t *testing.T) {
	cases := map[string]bool{
		"":                                  true,
		"https://www.youtube.com/watch?v=1": true,
		"https://youtu.be/abc":              true,
		"youtube.com/watch?v=2":             true,
		"youtu.be/x":                        true,
		"https://vimeo.com/123":             false,
		"http://youtube.com/watch":          false,
		"https://evil.com/youtube.com/":     false,
	}
	for link, want := range cases {
		if got := IsYouTubeURL(link); got != want {
			t.Errorf("IsYouTubeURL(%q) = %v, want %v", link, got, want)
		}
	}
}

type lessonInput struct {
	Name     string `json:"name" validate:"required,max=150"`
	VideoURL string `json:"video_url" validate:"omitempty,youtube"`
}

type passwords struct {
	Password1 string `json:"password1" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,eqfield=Password1"`
}

func TestValidatorFormatsFieldsByJSONName(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(lessonInput{Name: "Intro", VideoURL: "https://vimeo.com/1"})
	if err == nil {
		t.Fatal("expected error for non-youtube link")
	}
	fields := FormatValidationErrors(err)
	if fields["video_url"] != YouTubeMessage {
		t.Fatalf("unexpected fields %v", fields)
	}

	if err := v.ValidateStruct(lessonInput{Name: "Intro", VideoURL: "https://youtu.be/1"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	err = v.ValidateStruct(passwords{Password1: "secret123", Password2: "secret124"})
	if fields := FormatValidationErrors(err); fields["password2"] != PasswordMismatchMessage {
		t.Fatalf("unexpected fields %v", fields)
	}
}
