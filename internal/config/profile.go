package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSystemPrompt = `You are a helpful AI assistant.
Be concise but friendly in your responses.
If you're not sure about something, say so.
If asked about your capabilities, explain what you can do.`

	DefaultApology = "Sorry, I encountered an error. Please try again."
)

// BotProfile 描述机器人的人设：每个会话开头的系统提示词，以及无法生成回复时发送的道歉文案。
type BotProfile struct {
	SystemPrompt string `yaml:"system_prompt"`
	Apology      string `yaml:"apology"`
}

// DefaultBotProfile 在未设置 BOT_PROFILE_FILE 时使用。
func DefaultBotProfile() BotProfile {
	return BotProfile{SystemPrompt: DefaultSystemPrompt, Apology: DefaultApology}
}

// LoadBotProfile 读取 YAML 人设文件，缺失的字段保留默认值。
func LoadBotProfile(path string) (BotProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BotProfile{}, errors.Wrapf(err, "read bot profile %s", path)
	}

	var parsed BotProfile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return BotProfile{}, errors.Wrapf(err, "parse bot profile %s", path)
	}

	profile := DefaultBotProfile()
	if prompt := strings.TrimSpace(parsed.SystemPrompt); prompt != "" {
		profile.SystemPrompt = prompt
	}
	if apology := strings.TrimSpace(parsed.Apology); apology != "" {
		profile.Apology = apology
	}
	return profile, nil
}
