package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			DataDir:  "~/.interviewsim",
		},
		Knowledge: KnowledgeConfig{
			Dir:              "~/.interviewsim/knowledge",
			ChunkSize:        500,
			ChunkOverlap:     50,
			BoundaryAware:    false,
			Separators:       defaultSeparators(),
			DefaultTopK:      5,
			MaxTopK:          20,
			MinScore:         0,
			MaxContextLength: 2000,
		},
		Embedder: EmbedderConfig{
			Type:           "hashing",
			Dimension:      512,
			TimeoutSeconds: 60,
		},
		VectorStore: VectorStoreConfig{
			Type:       "sqlite",
			Path:       "~/.interviewsim/vectors.db",
			Collection: "interview_knowledge",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Priority: []string{"openai", "groq", "google"},
			Failover: false,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-3.5-turbo",
				Temperature:  0.7,
				MaxTokens:    1024,
			},
			"groq": {
				Enabled:      true,
				APIBase:      "https://api.groq.com/openai/v1",
				APIKey:       "${GROQ_API_KEY}",
				DefaultModel: "mixtral-8x7b-32768",
				Temperature:  0.7,
				MaxTokens:    1024,
			},
			"google": {
				Enabled:      true,
				APIBase:      "https://generativelanguage.googleapis.com/v1beta/openai",
				APIKey:       "${GOOGLE_API_KEY}",
				DefaultModel: "gemini-pro",
				Temperature:  0.7,
				MaxTokens:    1024,
			},
			"ollama": {
				Enabled:      false,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
				Temperature:  0.7,
				MaxTokens:    1024,
			},
			"claude": {
				Enabled:      false,
				APIBase:      "https://api.anthropic.com/v1",
				APIKey:       "${ANTHROPIC_API_KEY}",
				DefaultModel: "claude-3-5-haiku-latest",
				Temperature:  0.7,
				MaxTokens:    1024,
			},
		},
		Interview: InterviewConfig{
			Difficulty:   "intermediate",
			HistoryTurns: 6,
			MaxTurns:     50,
		},
		Transcripts: TranscriptsConfig{
			Enabled: true,
			DBPath:  "~/.interviewsim/transcripts.db",
		},
		Metrics: MetricsConfig{
			Enabled:            false,
			Addr:               "127.0.0.1:9464",
			TargetLatencyMs:    500,
			PrecisionThreshold: 0.6,
		},
		Speech: SpeechConfig{
			Enabled: false,
			APIBase: "https://api.openai.com/v1",
			APIKey:  "${OPENAI_API_KEY}",
			Model:   "whisper-1",
		},
	}
}

func defaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", ", ", " "}
}
