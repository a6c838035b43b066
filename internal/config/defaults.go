package config

const (
	defaultUploadsDir       = "~/.local/share/imgvault/uploads"
	defaultDataDir          = "~/.local/share/imgvault"
	defaultLogDir           = "~/.local/share/imgvault/logs"
	defaultVaultDirPrefix   = "imgvault-backups"
	defaultTargetFormat     = FormatWebP
	defaultQuality          = 80
	defaultMemoryLimitMiB   = 256
	defaultBackend          = BackendBuiltin
	defaultMaxAttempts      = 3
	defaultBatchSize        = 5
	defaultStepIntervalMS   = 250
	defaultAPIBind          = "127.0.0.1:7488"
	defaultWatchSettleSecs  = 3
	defaultNtfyTimeoutSecs  = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogMaxSizeMiB    = 20
	defaultDatabaseFileName = "library.db"
)

func defaultEligibleMIMETypes() []string {
	return []string{"image/jpeg", "image/png"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadsDir: defaultUploadsDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Vault: Vault{
			DirPrefix: defaultVaultDirPrefix,
		},
		Conversion: Conversion{
			TargetFormat:      defaultTargetFormat,
			Quality:           defaultQuality,
			EligibleMIMETypes: defaultEligibleMIMETypes(),
			MemoryLimitMiB:    defaultMemoryLimitMiB,
			Backend:           defaultBackend,
			MaxAttempts:       defaultMaxAttempts,
		},
		Batch: Batch{
			Size:           defaultBatchSize,
			StepIntervalMS: defaultStepIntervalMS,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Watch: Watch{
			SettleSeconds: defaultWatchSettleSecs,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSecs,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMiB: defaultLogMaxSizeMiB,
		},
	}
}
