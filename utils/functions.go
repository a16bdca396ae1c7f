package utils

import (
	"fmt"
	"net/http"
	u "net/url"
	"time"

	"github.com/rs/zerolog/log"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// includes logger
func CreateHTTPClient(timeout time.Duration, keepAliveTO time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     keepAliveTO,
		MaxConnsPerHost:     0,
	}
	if proxyURL != "" {
		proxyURLParsed, err := u.Parse(proxyURL)
		if err != nil {
			log.Error().Err(err).Str("proxy", proxyURL).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			transport.Proxy = http.ProxyURL(proxyURLParsed)
			log.Debug().Str("proxy", proxyURL).Msg("Using proxy for connections")
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatETA(seconds int64) string {
	if seconds < 0 {
		return "calculating..."
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
