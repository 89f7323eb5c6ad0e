package config

import "github.com/spf13/viper"

// setDefaults mirrors conf.setDefaultConfig's shape: one SetDefault
// call per leaf key, grouped by subsystem.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "logs/audiocore-sim.log")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 10)

	v.SetDefault("tx.pipeline.name", "tx")
	v.SetDefault("tx.pipeline.samplerateHz", 16000)
	v.SetDefault("tx.pipeline.bitdepth", 16)
	v.SetDefault("tx.pipeline.channelcount", 1)
	v.SetDefault("tx.pipeline.payloadsamples", 160)
	v.SetDefault("tx.pipeline.queuesize", 8)
	v.SetDefault("tx.pipeline.doinitialbuffering", true)
	v.SetDefault("tx.pipeline.useencapsulation", true)

	v.SetDefault("tx.resample.enabled", false)
	v.SetDefault("tx.resample.multiplyratio", 1)
	v.SetDefault("tx.resample.divideratio", 1)

	v.SetDefault("tx.cdc.enabled", true)
	v.SetDefault("tx.cdc.variant", "resample")
	v.SetDefault("tx.cdc.queueavgsize", 1000)
	v.SetDefault("tx.cdc.windowframes", 1440)

	v.SetDefault("tx.adpcm.enabled", false)

	v.SetDefault("tx.fallback.enabled", true)
	v.SetDefault("tx.fallback.istxdevice", true)
	v.SetDefault("tx.fallback.linkmarginthreshold", 50)
	v.SetDefault("tx.fallback.linkmarginthresholdhysteresis", 20)
	v.SetDefault("tx.fallback.linkmargingoodtimesec", 5)
	v.SetDefault("tx.fallback.ccamaxtrycount", 0)
	v.SetDefault("tx.fallback.ccatrycountthresholdperc", 5)
	v.SetDefault("tx.fallback.ccagoodtimesec", 30)
	v.SetDefault("tx.fallback.ccabadtimesec", 0.1)
	v.SetDefault("tx.fallback.consumerbufferloadthresholdtenths", 13)

	v.SetDefault("rx.pipeline.name", "rx")
	v.SetDefault("rx.pipeline.samplerateHz", 16000)
	v.SetDefault("rx.pipeline.bitdepth", 16)
	v.SetDefault("rx.pipeline.channelcount", 1)
	v.SetDefault("rx.pipeline.payloadsamples", 160)
	v.SetDefault("rx.pipeline.queuesize", 8)
	v.SetDefault("rx.pipeline.doinitialbuffering", true)
	v.SetDefault("rx.pipeline.useencapsulation", true)

	v.SetDefault("rx.adpcm.enabled", false)

	v.SetDefault("rx.mute.enabled", true)
	v.SetDefault("rx.mute.coverdurationmillis", 30)

	v.SetDefault("rx.fallback.enabled", true)
	v.SetDefault("rx.fallback.istxdevice", false)

	v.SetDefault("mixer.enabled", false)
	v.SetDefault("mixer.numinputs", 2)
	v.SetDefault("mixer.payloadsize", 320)
	v.SetDefault("mixer.bitdepth", 16)
}
