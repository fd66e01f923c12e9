package main

import (
	"flag"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
	"github.com/giantswarm/clustersecret-operator/internal/config"
	"github.com/giantswarm/clustersecret-operator/internal/controller"
	"github.com/giantswarm/clustersecret-operator/pkg/project"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(clustersecretv1alpha1.AddToScheme(scheme))
}

// loadRestConfig picks the client bootstrap strategy per §6's
// KUBERNETES_SERVICE_HOST contract: in-cluster auth when the operator is
// running as a pod, kubeconfig discovery otherwise. Kubeconfig discovery
// itself is out of scope for this controller; ctrl.GetConfig() supplies it.
func loadRestConfig(cfg config.Config) (*rest.Config, error) {
	if cfg.InCluster {
		return rest.InClusterConfig()
	}
	return ctrl.GetConfig()
}

func main() {
	var (
		metricsAddr          string
		probeAddr            string
		enableLeaderElection bool
	)

	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg := config.FromEnv()

	restConfig, err := loadRestConfig(cfg)
	if err != nil {
		setupLog.Error(err, "unable to load kubernetes client config")
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "clustersecret-operator.clustersecret.io",
	})
	if err != nil {
		setupLog.Error(err, "unable to create manager")
		os.Exit(1)
	}

	reconciler := controller.NewReconciler(mgr.GetClient(), cfg, mgr.GetEventRecorderFor("clustersecret-controller"))

	if err := (&controller.ClusterSecretReconciler{Reconciler: reconciler}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "ClusterSecret")
		os.Exit(1)
	}
	if err := (&controller.NamespaceReconciler{Reconciler: reconciler}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Namespace")
		os.Exit(1)
	}
	if err := (&controller.SecretReconciler{Reconciler: reconciler}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Secret")
		os.Exit(1)
	}

	// The startup reconciler runs once when the manager starts, alongside
	// the controllers, recovering from anything missed while the operator
	// was down (§4.5 "Startup").
	if err := mgr.Add(&controller.StartupReconciler{Reconciler: reconciler}); err != nil {
		setupLog.Error(err, "unable to add startup reconciler")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager",
		"version", project.Version(),
		"gitSHA", project.GitSHA(),
		"buildTimestamp", project.BuildTimestamp(),
		"replaceExisting", cfg.ReplaceExisting,
	)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
