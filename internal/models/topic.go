package models

import "strings"

// ContentTopic is the agricultural subject a piece of copy is written about.
type ContentTopic string

const (
	TopicWeather   ContentTopic = "weather"
	TopicHarvest   ContentTopic = "harvest"
	TopicTips      ContentTopic = "tips"
	TopicMarket    ContentTopic = "market"
	TopicCommunity ContentTopic = "community"

	// TopicGeneral is used for anything that is not one of the topics above.
	TopicGeneral ContentTopic = "general"
)

var knownTopics = map[ContentTopic]struct{}{
	TopicWeather:   {},
	TopicHarvest:   {},
	TopicTips:      {},
	TopicMarket:    {},
	TopicCommunity: {},
}

// ParseTopic never fails: unrecognized values map to TopicGeneral.
func ParseTopic(name string) ContentTopic {
	t := ContentTopic(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := knownTopics[t]; ok {
		return t
	}
	return TopicGeneral
}

// Topics lists the recognized topics, excluding the general fallback.
func Topics() []ContentTopic {
	return []ContentTopic{TopicWeather, TopicHarvest, TopicTips, TopicMarket, TopicCommunity}
}
