package config

const (
	defaultConfigPath       = "~/.config/podscribe/config.toml"
	projectConfigName       = "podscribe.toml"
	defaultOutputDir        = "~/podscribe"
	defaultLogDir           = "~/.local/share/podscribe/logs"
	defaultStateDir         = "~/.local/share/podscribe/state"
	defaultMinFreeMiB       = 512
	defaultMaxChunk         = "10m"
	defaultMinSilence       = "1000ms"
	defaultSilenceThreshold = -40.0
	defaultSilencePadding   = "500ms"
	defaultLanguage         = "zh"
	defaultChunkFormat      = "mp3"
	defaultOffsetMode       = "last_segment_end"
	defaultLockWait         = "0s"
	defaultBackend          = BackendWhisperX
	defaultWhisperXModel    = "large-v3"
	defaultWhisperXVAD      = "silero"
	defaultWhisperXCacheDir = "~/.cache/podscribe/whisperx"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "whisper-1"
	defaultOpenAITimeout    = 600
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultSpeechPrefix     = "podscribe"
	defaultSpeechModel      = "default"
	defaultOpenCCProfile    = "t2s"
	defaultOutputFormat     = "markdown"
	defaultOutputTitle      = "音频转录"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultServiceName      = "podscribe"
	defaultSettleDelay      = "5s"
	defaultNtfyTimeout      = 10
)

// Recognizer backend identifiers.
const (
	BackendWhisperX     = "whisperx"
	BackendOpenAI       = "openai"
	BackendGemini       = "gemini"
	BackendGoogleSpeech = "google_speech"
)

var defaultWatchExtensions = []string{".mp3", ".m4a", ".wav", ".flac", ".ogg", ".opus", ".aac"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Pipeline: Pipeline{
			MaxChunkDuration: defaultMaxChunk,
			MinSilenceLength: defaultMinSilence,
			SilenceThreshold: defaultSilenceThreshold,
			SilencePadding:   defaultSilencePadding,
			Language:         defaultLanguage,
			NormalizeScript:  true,
			ChunkFormat:      defaultChunkFormat,
			OffsetMode:       defaultOffsetMode,
			LockWait:         defaultLockWait,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			UVX:     "uvx",
		},
		Recognizer: Recognizer{
			Backend: defaultBackend,
			WhisperX: WhisperX{
				Model:     defaultWhisperXModel,
				VADMethod: defaultWhisperXVAD,
				CacheDir:  defaultWhisperXCacheDir,
			},
			OpenAI: OpenAI{
				BaseURL:        defaultOpenAIBaseURL,
				Model:          defaultOpenAIModel,
				TimeoutSeconds: defaultOpenAITimeout,
			},
			Gemini: Gemini{
				Model: defaultGeminiModel,
			},
			GoogleSpeech: GoogleSpeech{
				ObjectPrefix: defaultSpeechPrefix,
				Model:        defaultSpeechModel,
			},
		},
		Normalize: Normalize{
			Profile: defaultOpenCCProfile,
		},
		Output: Output{
			Format: defaultOutputFormat,
			Title:  defaultOutputTitle,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tracing: Tracing{
			ServiceName: defaultServiceName,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Watch: Watch{
			SettleDelay: defaultSettleDelay,
			Extensions:  append([]string(nil), defaultWatchExtensions...),
		},
	}
}
