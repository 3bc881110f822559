package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/mercurial",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DefaultProvider: "deepseek",
		DefaultMode:     "general",
		CodeDirectory:   "codes",
		Listen:          "127.0.0.1:5000",
		MaxHistory:      40,
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
		Providers: DefaultProviders(),
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Mercurial System Configuration
# Location: ~/.config/mercurial/settings.toml
# This file uses TOML format: https://toml.io

# Directory holding config.toml, credentials and the sqlite database
data_directory = "~/.local/share/mercurial"
`
}

func GenerateUserConfigTemplate() string {
	return `# Mercurial User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Upstream used for every conversation: deepseek, openai, openrouter, anthropic, ollama
default_provider = "deepseek"

# Mode of new sessions: general, c, python, java
default_mode = "general"

# Where extracted code blocks are written (relative to the working directory)
code_directory = "codes"

# Address of "mercurial serve"
listen = "127.0.0.1:5000"

# Messages kept per session before the oldest turns are dropped
max_history = 40

# Persona prepended to every system prompt (optional)
system_prompt = ""

[security]
# "plaintext" (credentials.toml) or "ssh_key" (credentials.enc)
credential_storage = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"

[[providers]]
id = "deepseek"
base_url = "https://api.deepseek.com"
model = "deepseek-chat"
enabled = true

[[providers]]
id = "openai"
base_url = "https://api.openai.com/v1"
model = "gpt-4o-mini"
enabled = false

[[providers]]
id = "openrouter"
base_url = "https://openrouter.ai/api/v1"
model = "deepseek/deepseek-chat"
enabled = false

[[providers]]
id = "anthropic"
base_url = "https://api.anthropic.com"
model = "claude-sonnet-4-5-20250929"
enabled = false

[[providers]]
id = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"
enabled = false
`
}
