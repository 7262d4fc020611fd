package speech

import (
	"fmt"
	"strings"
)

// resolveCredentials 返回规范化后的合成地址与订阅密钥，缺失时给出明确错误。
func resolveCredentials(cfg AzureConfig) (string, string, error) {
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return "", "", fmt.Errorf("%w: speech key is empty", ErrMissingCredentials)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint != "" {
		if !strings.Contains(endpoint, "/cognitiveservices/") {
			endpoint += "/cognitiveservices/v1"
		}
		return endpoint, key, nil
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return "", "", fmt.Errorf("%w: speech region or endpoint is required", ErrMissingCredentials)
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region), key, nil
}
