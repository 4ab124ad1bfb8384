package tcc

import (
	"io/ioutil"

	jsoniter "github.com/json-iterator/go"
)

// ConvertJSONFileToConfig opens a file.json and converts to ClusterSeasoning.
func ConvertJSONFileToConfig(fileNamePath string) (*ClusterSeasoning, error) {

	byteValue, err := ioutil.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &ClusterSeasoning{}
	var json = jsoniter.ConfigFastest
	err = json.Unmarshal(byteValue, config)

	return config, err
}

// ConvertJSONFileToPoolConfig opens a file.json and converts to PoolConfig.
func ConvertJSONFileToPoolConfig(fileNamePath string) (*PoolConfig, error) {

	byteValue, err := ioutil.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &PoolConfig{}
	var json = jsoniter.ConfigFastest
	err = json.Unmarshal(byteValue, config)

	return config, err
}
