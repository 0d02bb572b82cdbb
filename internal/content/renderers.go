package content

import (
	"strings"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/pkg/util"
)

// Renderer shapes localized copy and hashtags into the text for one platform.
// It returns the text and the hashtags that made it into the text.
type Renderer interface {
	Render(c Copy, hashtags []string) (string, []string)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(c Copy, hashtags []string) (string, []string)

func (f RendererFunc) Render(c Copy, hashtags []string) (string, []string) {
	return f(c, hashtags)
}

// DefaultRenderers maps each known platform to its copy style.
func DefaultRenderers() map[models.PlatformType]Renderer {
	return map[models.PlatformType]Renderer{
		models.PlatformTwitter:   ShortRenderer{Limit: 280},
		models.PlatformFacebook:  NarrativeRenderer{},
		models.PlatformLinkedIn:  NarrativeRenderer{MaxHashtags: 3},
		models.PlatformInstagram: CaptionRenderer{ExtraHashtags: []string{"#FarmLife", "#InstaFarm", "#GrowYourOwn"}},
	}
}

// ShortRenderer produces hashtag-dense copy capped at Limit runes. Trailing
// tags are dropped first; the first (domain) tag is always kept.
type ShortRenderer struct {
	Limit int
}

func (r ShortRenderer) Render(c Copy, hashtags []string) (string, []string) {
	body := c.Headline + ": " + c.Short
	tags := append([]string(nil), hashtags...)

	compose := func() string {
		if len(tags) == 0 {
			return body
		}
		return body + " " + strings.Join(tags, " ")
	}

	if r.Limit <= 0 {
		return compose(), tags
	}

	for util.RuneLen(compose()) > r.Limit && len(tags) > 1 {
		tags = tags[:len(tags)-1]
	}
	if over := util.RuneLen(compose()) - r.Limit; over > 0 {
		runes := []rune(body)
		cut := len(runes) - over - 1
		if cut < 0 {
			cut = 0
		}
		body = strings.TrimSpace(string(runes[:cut])) + "…"
	}
	return compose(), tags
}

// NarrativeRenderer produces the long-form post used on Facebook and LinkedIn.
type NarrativeRenderer struct {
	MaxHashtags int
}

func (r NarrativeRenderer) Render(c Copy, hashtags []string) (string, []string) {
	tags := hashtags
	if r.MaxHashtags > 0 && len(tags) > r.MaxHashtags {
		tags = tags[:r.MaxHashtags]
	}

	parts := []string{c.Headline, c.Long, c.CallToAction}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n\n"), tags
}

// CaptionRenderer produces a caption followed by a separated tag block.
type CaptionRenderer struct {
	ExtraHashtags []string
}

func (r CaptionRenderer) Render(c Copy, hashtags []string) (string, []string) {
	tags := util.DedupHashtags(hashtags, r.ExtraHashtags)

	var b strings.Builder
	b.WriteString(c.Headline)
	b.WriteString("\n")
	b.WriteString(c.Caption)
	b.WriteString("\n.\n.\n.\n")
	b.WriteString(strings.Join(tags, " "))
	return b.String(), tags
}
