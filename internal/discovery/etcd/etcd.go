package etcd

import (
	"context"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ServiceDiscovery 封装了基于 etcd 的服务注册与发现。
// worker 副本通过带租约的 key 注册自身，API 与监控服务据此列出存活的 worker。
type ServiceDiscovery struct {
	cli *clientv3.Client // etcd client
}

// NewServiceDiscovery creates a new ServiceDiscovery.
func NewServiceDiscovery(endpoints []string) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &ServiceDiscovery{cli: cli}, nil
}

// serviceKey 构造某个服务实例的注册键，发现侧必须使用相同的命名空间。
func serviceKey(serviceName, addr string) string {
	return servicePrefix(serviceName) + addr
}

// servicePrefix 构造某个服务名下全部实例的键前缀。
func servicePrefix(serviceName string) string {
	return "/" + serviceName + "/"
}

// Register registers a service with etcd under "/<serviceName>/<addr>",
// bound to a lease of the given TTL. The returned channel stops the
// keep-alive loop when closed.
func (s *ServiceDiscovery) Register(serviceName, addr string, ttl int64) (chan<- struct{}, error) {
	leaseResp, err := s.cli.Grant(context.Background(), ttl)
	if err != nil {
		return nil, err
	}

	_, err = s.cli.Put(context.Background(), serviceKey(serviceName, addr), addr, clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return nil, err
	}

	keepAliveCh, err := s.cli.KeepAlive(context.Background(), leaseResp.ID)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case _, ok := <-keepAliveCh:
				if !ok {
					// Lease expired or was revoked.
					s.revoke(serviceName, addr)
					return
				}
			}
		}
	}()

	return stop, nil
}

// revoke revokes a service from etcd.
func (s *ServiceDiscovery) revoke(serviceName, addr string) {
	// The lease will be automatically revoked by etcd, but we can also manually delete the key.
	s.cli.Delete(context.Background(), serviceKey(serviceName, addr))
}

// Discover discovers all addresses registered under a service name.
func (s *ServiceDiscovery) Discover(serviceName string) ([]string, error) {
	resp, err := s.cli.Get(context.Background(), servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, ev := range resp.Kvs {
		addrs = append(addrs, string(ev.Value))
	}

	return addrs, nil
}

// DiscoverServices lists every instance registered under a service name,
// keyed by the last path segment of the etcd key.
func (s *ServiceDiscovery) DiscoverServices(serviceName string) (map[string]string, error) {
	resp, err := s.cli.Get(context.Background(), servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	services := make(map[string]string)
	for _, ev := range resp.Kvs {
		services[path.Base(string(ev.Key))] = string(ev.Value)
	}
	return services, nil
}

// Close closes the etcd client.
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}
