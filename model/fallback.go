package model

// FallbackStations 内置电台列表，远程列表获取失败时使用
var FallbackStations = []Station{
	{
		ID:        "fallback-1",
		Name:      "Jazz Radio",
		Frequency: "88.5",
		Genre:     "Jazz",
		Artist:    "Various Artists",
		Track:     "Live Jazz Stream",
		StreamURL: "https://jazz-wr01.ice.infomaniak.ch/jazz-wr01-128.mp3",
		AudioURL:  "https://jazz-wr01.ice.infomaniak.ch/jazz-wr01-128.mp3",
		IsLive:    true,
	},
	{
		ID:        "fallback-2",
		Name:      "Classical Radio",
		Frequency: "95.7",
		Genre:     "Classical",
		Artist:    "Various Artists",
		Track:     "Live Classical Stream",
		StreamURL: "https://streaming.radio.co/s2c5d4b83f/listen",
		AudioURL:  "https://streaming.radio.co/s2c5d4b83f/listen",
		IsLive:    true,
	},
}

// Fallback 返回内置列表的副本
func Fallback() []Station {
	out := make([]Station, len(FallbackStations))
	copy(out, FallbackStations)
	return out
}

// DefaultEndpoint 默认的远程电台列表地址
const DefaultEndpoint = "https://five-radio.vercel.app/stations.json"
