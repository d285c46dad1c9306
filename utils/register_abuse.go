package utils

import (
	"strings"
	"time"

	"github.com/cppla/eduboard/config"
)

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// RegistrationCooldownTry enforces a short cooldown between attempts per IP.
func RegistrationCooldownTry(ip string) bool {
	sec := config.Get().RegisterAttemptCooldownSec
	if sec <= 0 {
		return true
	}
	return kvSetNX(regKey("cooldown", ip), time.Duration(sec)*time.Second)
}

// RegistrationDailyLimitCheck allows up to N successful registrations per day per IP.
func RegistrationDailyLimitCheck(ip string) bool {
	limit := config.Get().RegisterMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	return kvCount(regKey("succday", ip, nowFunc().Format("20060102"))) < int64(limit)
}

// RegistrationDailyIncrement increments the success counter for today.
func RegistrationDailyIncrement(ip string) {
	kvIncr(regKey("succday", ip, nowFunc().Format("20060102")), 24*time.Hour)
}

// RegistrationFailRecord counts a failed attempt and bans the IP once the hourly limit is hit.
func RegistrationFailRecord(ip string) {
	cfg := config.Get()
	n := kvIncr(regKey("failhour", ip, nowFunc().Format("2006010215")), time.Hour)
	if cfg.RegisterFailedMaxPerIPPerHour > 0 && n >= int64(cfg.RegisterFailedMaxPerIPPerHour) {
		minutes := cfg.RegisterTempBanMinutes
		if minutes <= 0 {
			minutes = 60
		}
		kvSet(regKey("ban", ip), "1", time.Duration(minutes)*time.Minute)
		Sugar.Warnw("registration temporarily banned", "ip", ip, "failures", n)
	}
}

// RegistrationIsBanned checks temporary ban status for IP.
func RegistrationIsBanned(ip string) bool {
	return kvExists(regKey("ban", ip))
}
