package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const Name = "chirpnet"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host         string
		HttpPort     int    `yaml:"httpPort"`
		BaseUrl      string `yaml:"baseUrl"`
		NodeName     string `yaml:"nodeName"`
		DbFile       string `yaml:"dbFile"`
		SyncSchedule string `yaml:"syncSchedule"`
	}
}

// ApiBase returns this node's own host in canonical form,
// i.e. the configured base url with a trailing "/api/".
func (c *AppConfig) ApiBase() string {
	return ApiBase(c.Conf.BaseUrl)
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("CHIRPNET_HOST")
	envHttpPort := os.Getenv("CHIRPNET_HTTPPORT")
	envBaseUrl := os.Getenv("CHIRPNET_BASEURL")
	envNodeName := os.Getenv("CHIRPNET_NODENAME")
	envDbFile := os.Getenv("CHIRPNET_DBFILE")
	envSyncSchedule := os.Getenv("CHIRPNET_SYNCSCHEDULE")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envBaseUrl != "" {
		c.Conf.BaseUrl = envBaseUrl
	}

	if envNodeName != "" {
		c.Conf.NodeName = envNodeName
	}

	if envDbFile != "" {
		c.Conf.DbFile = envDbFile
	}

	if envSyncSchedule != "" {
		c.Conf.SyncSchedule = envSyncSchedule
	}

	if c.Conf.BaseUrl == "" {
		c.Conf.BaseUrl = fmt.Sprintf("http://%s:%d", c.Conf.Host, c.Conf.HttpPort)
	}
	c.Conf.BaseUrl = strings.TrimRight(c.Conf.BaseUrl, "/")

	return c, nil
}
