package store

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestEtcdConformance(t *testing.T) {
	endpoints := os.Getenv("WARPSYNC_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("WARPSYNC_ETCD_ENDPOINTS not set")
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("etcd client: %v", err)
	}
	defer client.Close()
	testStoreConformance(t, NewEtcd(client), "/warp-sync-test/"+uuid.NewString()+"/")
}
