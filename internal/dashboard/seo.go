package dashboard

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SEOInput is the metadata of a product page to score.
type SEOInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	ImageCount  int      `json:"imageCount"`
}

// SEOCheck is one scored heuristic.
type SEOCheck struct {
	ID      string `json:"id"`
	Passed  bool   `json:"passed"`
	Weight  int    `json:"weight"`
	Message string `json:"message"`
}

// SEOReport is the weighted score out of 100 with the individual findings.
type SEOReport struct {
	Score  int        `json:"score"`
	Checks []SEOCheck `json:"checks"`
}

const (
	titleMin       = 30
	titleMax       = 60
	descriptionMin = 70
	descriptionMax = 160
	slugMax        = 60
	contentMin     = 300
)

// ScoreSEO grades page metadata with fixed heuristics. Lengths are counted in characters.
func ScoreSEO(in SEOInput) SEOReport {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	titleLen := utf8.RuneCountInString(title)
	descLen := utf8.RuneCountInString(desc)
	keyword := primaryKeyword(in.Keywords)

	checks := []SEOCheck{
		check("title_length", 15, titleLen >= titleMin && titleLen <= titleMax,
			"title is between 30 and 60 characters", "title should be between 30 and 60 characters"),
		check("description_length", 15, descLen >= descriptionMin && descLen <= descriptionMax,
			"meta description is between 70 and 160 characters", "meta description should be between 70 and 160 characters"),
		check("keyword_present", 10, keyword != "",
			"a focus keyword is set", "add at least one keyword"),
		check("keyword_in_title", 15, keyword != "" && contains(title, keyword),
			"title contains the focus keyword", "use the focus keyword in the title"),
		check("keyword_in_description", 10, keyword != "" && contains(desc, keyword),
			"meta description contains the focus keyword", "use the focus keyword in the meta description"),
		check("slug_length", 10, in.Slug != "" && utf8.RuneCountInString(in.Slug) <= slugMax,
			"slug is short", "keep the slug at most 60 characters"),
		check("content_length", 15, utf8.RuneCountInString(strings.TrimSpace(in.Content)) >= contentMin,
			"description has at least 300 characters", "write at least 300 characters of product description"),
		check("has_image", 10, in.ImageCount > 0,
			"product has an image", "add at least one product image"),
	}
	score := 0
	for _, c := range checks {
		if c.Passed {
			score += c.Weight
		}
	}
	return SEOReport{Score: score, Checks: checks}
}

func check(id string, weight int, passed bool, ok, fix string) SEOCheck {
	msg := fix
	if passed {
		msg = ok
	}
	return SEOCheck{ID: id, Passed: passed, Weight: weight, Message: msg}
}

func primaryKeyword(keywords []string) string {
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return ""
}

func contains(text, keyword string) bool {
	lower := cases.Lower(language.Turkish)
	return strings.Contains(lower.String(text), lower.String(keyword))
}
