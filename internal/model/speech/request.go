package speech

// SpeakRequest 是合成接口的请求体。
type SpeakRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice,omitempty"`  // 云端音色 ID，缺省使用偏好设置中的音色
	Styled bool   `json:"styled,omitempty"` // 按句子风格分段合成
}

// ClassifyRequest 是风格分类接口的请求体。
type ClassifyRequest struct {
	Text string `json:"text"`
}
