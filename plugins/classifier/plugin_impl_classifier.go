// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package classifier

import (
	"context"

	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/rpc/rest"
	prometheusplugin "github.com/ligato/cn-infra/rpc/prometheus"
	"github.com/ligato/cn-infra/servicelabel"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/utils/exec"

	"github.com/contiv/sfc-classifier/plugins/classifier/config"
	"github.com/contiv/sfc-classifier/plugins/classifier/flowstore"
	"github.com/contiv/sfc-classifier/plugins/classifier/locator"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/pathcache"
	"github.com/contiv/sfc-classifier/plugins/classifier/processor"
	"github.com/contiv/sfc-classifier/plugins/classifier/synthesizer"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer/kvdb"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer/openflow"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer/ovs"
)

// path where the classifier metrics are exposed
const prometheusMetricsPath = "/sfc-classifier/metrics"

// Plugin programs SFC classifier rules into the switches: traffic matched by ACL rules
// bound to the attachment points of a classifier is steered into service chain paths.
type Plugin struct {
	Deps

	config *config.Config

	// layers of the classifier plugin
	paths       *pathcache.PathCache
	switches    *openflow.Registry
	router      *writer.Router
	tunnels     *locator.TunnelLocator
	store       *flowstore.Store
	synthesizer *synthesizer.Synthesizer
	processor   *processor.Processor
}

// KVStore is used to create brokers for the key prefixes of the switch agents.
type KVStore interface {
	NewBroker(keyPrefix string) keyval.ProtoBroker
}

// Deps defines dependencies of the classifier plugin.
type Deps struct {
	infra.PluginDeps
	ServiceLabel servicelabel.ReaderAPI
	KVStore      KVStore
	HTTPHandlers rest.HTTPHandlers    // optional
	Prometheus   prometheusplugin.API // optional
	Exec         exec.Interface       // ovs utilities, optional
}

// Init loads the configuration and builds the layers of the plugin.
func (p *Plugin) Init() error {
	var err error

	// load configuration
	p.config = config.DefaultConfig()
	_, err = p.Cfg.LoadValue(p.config)
	if err != nil {
		return err
	}
	if err = p.config.Validate(); err != nil {
		return errors.Wrap(err, "invalid classifier configuration")
	}
	p.Log.Infof("SFC classifier configuration: %+v", *p.config)

	if p.KVStore == nil {
		return errors.New("classifier plugin requires key-value store")
	}
	if p.Exec == nil {
		p.Exec = exec.New()
	}

	// flow writers
	p.switches = openflow.NewRegistry()
	var ovsWriter *ovs.Writer
	if p.config.FlowWriter == config.OVSWriter || len(p.config.OvsBridges) > 0 {
		ovsWriter, err = ovs.NewWriter(ovs.Deps{
			Log:     p.Log.NewLogger("-ovsWriter"),
			Exec:    p.Exec,
			Bridges: p.config.OvsBridges,
			Retries: p.config.OvsCommitRetries,
		})
		if err != nil {
			return err
		}
	}
	var defaultWriter writer.FlowWriter
	switch p.config.FlowWriter {
	case config.KVDBWriter:
		defaultWriter = kvdb.NewWriter(kvdb.Deps{
			Log:     p.Log.NewLogger("-kvdbWriter"),
			KVStore: p.KVStore,
		})
	case config.OpenFlowWriter:
		defaultWriter = openflow.NewWriter(openflow.Deps{
			Log:      p.Log.NewLogger("-openflowWriter"),
			Switches: p.switches,
		})
	case config.OVSWriter:
		defaultWriter = ovsWriter
	}
	p.router = writer.NewRouter(defaultWriter)

	// locators
	staticPorts := locator.NewStaticPorts()
	for _, port := range p.config.StaticPorts {
		staticPorts.Set(port.ForwarderID, port.InterfaceName, model.Port{Number: port.Port})
	}
	ovsPorts := &locator.OVSPorts{
		Log:        p.Log.NewLogger("-ovsPorts"),
		Forwarders: make(map[string]locator.OFPortGetter),
	}
	for forwarderID := range p.config.OvsBridges {
		p.router.Register(forwarderID, ovsWriter)
		ovsPorts.Forwarders[forwarderID] = ovsWriter
	}
	ports := locator.PortChain{staticPorts, ovsPorts, locator.InterfaceNamePorts{}}
	p.tunnels = locator.NewTunnelLocator(locator.Deps{
		Log:           p.Log.NewLogger("-tunnelLocator"),
		KVStore:       p.KVStore,
		InterfaceName: p.config.TunnelInterfaceName,
		TunnelPort:    p.config.TunnelPort,
	})

	// flow store
	metrics := flowstore.NewMetrics(p.ServiceLabel.GetAgentLabel())
	if p.Prometheus != nil {
		err = p.Prometheus.NewRegistry(prometheusMetricsPath,
			promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError, ErrorLog: p.Log})
		if err != nil {
			return err
		}
		for _, collector := range metrics.Collectors() {
			if err = p.Prometheus.Register(prometheusMetricsPath, collector); err != nil {
				p.Log.Errorf("failed to register classifier metric: %v", err)
				return err
			}
		}
	}
	p.store = flowstore.NewStore(flowstore.Deps{
		Log:     p.Log.NewLogger("-flowStore"),
		Writer:  p.router,
		Metrics: metrics,
	})

	p.paths = pathcache.NewPathCache()
	p.synthesizer, err = synthesizer.NewSynthesizer(synthesizer.Deps{
		Log:     p.Log.NewLogger("-synthesizer"),
		Config:  p.config,
		Paths:   p.paths,
		Ports:   ports,
		Tunnels: p.tunnels,
	})
	if err != nil {
		return err
	}
	p.processor = processor.NewProcessor(processor.Deps{
		Log:               p.Log.NewLogger("-classifierProcessor"),
		ReversePathSuffix: p.config.ReversePathSuffix,
		Synthesizer:       p.synthesizer,
		Store:             p.store,
		Paths:             p.paths,
		SwitchCleanup:     p.tunnels.Invalidate,
		HopsChanged:       p.tunnels.Invalidate,
	})
	return nil
}

// AfterInit registers REST handlers and installs the classifiers from the configuration.
func (p *Plugin) AfterInit() error {
	p.registerHandlers()

	bindings, err := staticBindings(p.config)
	if err != nil {
		return err
	}
	paths := make([]*model.ChainPath, 0, len(p.config.ChainPaths))
	for i := range p.config.ChainPaths {
		paths = append(paths, &p.config.ChainPaths[i])
	}
	if err := p.processor.Resync(context.Background(), bindings, paths); err != nil {
		// rules that could be installed stay installed
		p.Log.Errorf("Failed to install configured classifiers: %v", err)
	}
	return nil
}

// Close is NOOP.
func (p *Plugin) Close() error {
	return nil
}

// AddClassifier installs rules of the classifier bound to the ACL.
func (p *Plugin) AddClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error {
	return p.processor.AddClassifier(ctx, cls, acl)
}

// UpdateClassifier replaces rules of the classifier.
func (p *Plugin) UpdateClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error {
	return p.processor.UpdateClassifier(ctx, cls, acl)
}

// DeleteClassifier removes rules of the classifier.
func (p *Plugin) DeleteClassifier(ctx context.Context, name string) error {
	return p.processor.DeleteClassifier(ctx, name)
}

// AddChainPath adds or replaces a chain path.
func (p *Plugin) AddChainPath(ctx context.Context, path *model.ChainPath) error {
	return p.processor.AddChainPath(ctx, path)
}

// DeleteChainPath removes a chain path and rules steering traffic into it.
func (p *Plugin) DeleteChainPath(ctx context.Context, name string) error {
	return p.processor.DeleteChainPath(ctx, name)
}

// DumpFlows returns the installed rules grouped by path and switch.
func (p *Plugin) DumpFlows() []flowstore.PathRecord {
	return p.store.Dump()
}

// SwitchConnected makes the switch available to the OpenFlow writer.
func (p *Plugin) SwitchConnected(switchID string, sw openflow.Switch) {
	p.Log.Infof("Switch %s connected", switchID)
	p.switches.Connected(switchID, sw)
}

// SwitchDisconnected removes the switch from the OpenFlow writer.
func (p *Plugin) SwitchDisconnected(switchID string) {
	p.Log.Infof("Switch %s disconnected", switchID)
	p.switches.Disconnected(switchID)
}

// staticBindings pairs configured classifiers with their ACLs.
func staticBindings(cfg *config.Config) ([]processor.Binding, error) {
	acls := make(map[string]model.ACL, len(cfg.ACLs))
	for _, acl := range cfg.ACLs {
		acls[acl.Name] = acl
	}
	bindings := make([]processor.Binding, 0, len(cfg.Classifiers))
	for _, cls := range cfg.Classifiers {
		acl, found := acls[cls.ACLName]
		if !found {
			return nil, errors.Errorf("classifier %s references unknown ACL %s", cls.Name, cls.ACLName)
		}
		bindings = append(bindings, processor.Binding{Classifier: cls, ACL: acl})
	}
	return bindings, nil
}
