// 信号调度的输入数据加载
package input

import (
	"context"
	"errors"
	"fmt"
	"os"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
)

var log = logrus.WithField("module", "input")

var (
	ErrNoMapSource = errors.New("input: no map file, mongodb uri or cache-only source configured")
)

// Input 输入数据
// 功能：信号调度只需要地图（路口、道路、车道）
type Input struct {
	Map *mapv2.Map
}

// Load 加载地图
// 功能：map.file优先；否则从MongoDB下载，cacheDir有效时先读写本地缓存{db}.{col}.pb
// 参数：c-配置对象，cacheDir-缓存目录（为空则禁用缓存）
func Load(ctx context.Context, c config.Config, cacheDir string) (*Input, error) {
	path := c.Input.Map
	if path.File != "" {
		var m mapv2.Map
		if err := protoutil.UnmarshalFromFile(&m, path.File); err != nil {
			return nil, fmt.Errorf("load map from %s: %w", path.File, err)
		}
		log.Infof("map loaded from %s", path.File)
		return &Input{Map: &m}, nil
	}
	if !cacheEnabled(cacheDir) {
		cacheDir = ""
	}
	var download func() *mapv2.Map
	var downloadErr error
	if !path.OnlyCache {
		if c.Input.URI == "" {
			return nil, ErrNoMapSource
		}
		client := mongoutil.NewClient(c.Input.URI)
		defer client.Disconnect(ctx)
		download = func() *mapv2.Map {
			m, err := downloadMap(ctx, client, path)
			downloadErr = err
			return m
		}
	}
	log.Infof("start fetching map from %s.%s", path.DB, path.Col)
	m, err := cache.LoadWithCache(cacheDir, path, download)
	if downloadErr != nil {
		return nil, downloadErr
	}
	if err != nil {
		return nil, fmt.Errorf("load map %s.%s with cache: %w", path.DB, path.Col, err)
	}
	log.Infof("finish fetching map: %d junctions, %d roads, %d lanes",
		len(m.Junctions), len(m.Roads), len(m.Lanes))
	return &Input{Map: m}, nil
}

func downloadMap(ctx context.Context, client *mongo.Client, path config.InputPath) (*mapv2.Map, error) {
	coll := mongoutil.GetMongoColl(client, path)
	m, errs := mongoutil.DownloadPbFromMongo[mapv2.Map, *mapv2.Map](ctx, coll, nil, nil)
	if len(errs) > 0 {
		return nil, fmt.Errorf("download map %s.%s: %w", path.DB, path.Col, errors.Join(errs...))
	}
	return m, nil
}

// cacheEnabled 缓存目录存在时启用缓存
func cacheEnabled(cacheDir string) bool {
	if cacheDir == "" {
		log.Info("disable input cache")
		return false
	}
	if stat, err := os.Stat(cacheDir); err == nil && stat.IsDir() {
		log.Infof("enable input cache at %s", cacheDir)
		return true
	}
	log.Errorf("disable input cache because invalid dir %s (not exist or file)", cacheDir)
	return false
}
