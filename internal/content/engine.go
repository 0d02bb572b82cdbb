package content

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/pkg/util"
)

//go:embed locales/*.json
var localeFS embed.FS

// DomainHashtag is attached to every piece of generated copy.
const DomainHashtag = "#Agriculture"

var topicHashtags = map[models.ContentTopic][]string{
	models.TopicWeather:   {"#Weather", "#FarmWeather"},
	models.TopicHarvest:   {"#Harvest", "#HarvestSeason"},
	models.TopicTips:      {"#FarmingTips", "#SoilHealth"},
	models.TopicMarket:    {"#MarketPrices", "#AgriBusiness"},
	models.TopicCommunity: {"#FarmCommunity", "#RuralLife"},
	models.TopicGeneral:   {"#Farming"},
}

// Copy is the localized text a renderer works with.
type Copy struct {
	Headline     string
	Short        string
	Long         string
	Caption      string
	CallToAction string
}

// Content is the rendered result for one (topic, platform, locale).
type Content struct {
	Topic    models.ContentTopic `json:"topic"`
	Platform models.PlatformType `json:"platform"`
	Locale   string              `json:"locale"`
	Text     string              `json:"text"`
	Hashtags []string            `json:"hashtags"`
}

// Engine renders deterministic copy from embedded templates. It is safe for
// concurrent use once constructed; RegisterRenderer is meant for setup only.
type Engine struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	renderers   map[models.PlatformType]Renderer
	fallback    Renderer
}

func NewEngine(defaultLocale string) (*Engine, error) {
	defaultLang, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("invalid default locale %q: %w", defaultLocale, err)
	}

	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list locale files: %w", err)
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("failed to load locale file %s: %w", file, err)
		}
	}

	probe := i18n.NewLocalizer(bundle, defaultLang.String())
	if _, err := probe.Localize(&i18n.LocalizeConfig{MessageID: "general.headline"}); err != nil {
		return nil, fmt.Errorf("no templates for default locale %q", defaultLocale)
	}

	return &Engine{
		bundle:      bundle,
		defaultLang: defaultLang,
		renderers:   DefaultRenderers(),
		fallback:    ShortRenderer{Limit: 280},
	}, nil
}

// RegisterRenderer adds or replaces the renderer for a platform.
func (e *Engine) RegisterRenderer(platform models.PlatformType, r Renderer) {
	e.renderers[platform] = r
}

// Locales lists the languages templates exist for.
func (e *Engine) Locales() []string {
	tags := e.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}

// Generate never fails: unknown topics render the general template, unknown
// locales render the default language and unknown platforms use the short form.
func (e *Engine) Generate(topic models.ContentTopic, platform models.PlatformType, locale string) Content {
	topic = models.ParseTopic(string(topic))

	localizer := i18n.NewLocalizer(e.bundle, strings.TrimSpace(locale))
	copyText, tag := e.localize(localizer, topic, platform)

	renderer, ok := e.renderers[platform]
	if !ok {
		renderer = e.fallback
	}

	tags := util.DedupHashtags([]string{DomainHashtag}, topicHashtags[topic])
	text, used := renderer.Render(copyText, tags)

	return Content{
		Topic:    topic,
		Platform: platform,
		Locale:   tag.String(),
		Text:     text,
		Hashtags: used,
	}
}

func (e *Engine) localize(localizer *i18n.Localizer, topic models.ContentTopic, platform models.PlatformType) (Copy, language.Tag) {
	tag := e.defaultLang
	msg := func(id string, data map[string]interface{}) string {
		text, t, err := localizer.LocalizeWithTag(&i18n.LocalizeConfig{
			MessageID:    id,
			TemplateData: data,
		})
		if err != nil {
			// Missing in the requested language; the default language has every id.
			text, t, err = i18n.NewLocalizer(e.bundle, e.defaultLang.String()).LocalizeWithTag(&i18n.LocalizeConfig{
				MessageID:    id,
				TemplateData: data,
			})
			if err != nil {
				return id
			}
		}
		tag = t
		return text
	}

	prefix := string(topic) + "."
	c := Copy{
		Headline:     msg(prefix+"headline", nil),
		Short:        msg(prefix+"short", nil),
		Long:         msg(prefix+"long", nil),
		Caption:      msg(prefix+"caption", nil),
		CallToAction: msg("cta", map[string]interface{}{"Platform": platform.DisplayName()}),
	}
	return c, tag
}
