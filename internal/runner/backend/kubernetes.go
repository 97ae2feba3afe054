package backend

import (
	"context"
	"fmt"
	"time"

	appErr "exrun/pkg/errors"
	"exrun/pkg/utils/logger"

	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	runnerContainerName = "test-runner"
	bundleVolumeName    = "test-files"

	defaultNamespace     = "default"
	defaultJobTTLSeconds = 300
)

// KubernetesConfig holds settings for the live backend.
type KubernetesConfig struct {
	// Namespace is where bundles and jobs are created.
	Namespace string `yaml:"namespace"`
	// Kubeconfig is the path used when not running in-cluster.
	Kubeconfig string `yaml:"kubeconfig"`
	// JobTTLSeconds controls post-completion cleanup of finished jobs, so an
	// orchestrator crash after launch does not leak resources indefinitely.
	JobTTLSeconds int32 `yaml:"jobTTLSeconds"`
}

// KubernetesBackend implements Backend against a Kubernetes control plane.
// Bundles are ConfigMaps, execution units are batch/v1 Jobs.
type KubernetesBackend struct {
	client    kubernetes.Interface
	namespace string
	jobTTL    int32
}

// NewKubernetesBackend builds a backend from in-cluster config, falling back
// to the kubeconfig file.
func NewKubernetesBackend(cfg KubernetesConfig) (*KubernetesBackend, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load kubernetes configuration failed: %w", err)
		}
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client failed: %w", err)
	}
	return NewKubernetesBackendWithClient(client, cfg.Namespace, cfg.JobTTLSeconds), nil
}

// NewKubernetesBackendWithClient wraps an existing clientset. Used by tests
// with a fake clientset.
func NewKubernetesBackendWithClient(client kubernetes.Interface, namespace string, jobTTLSeconds int32) *KubernetesBackend {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if jobTTLSeconds <= 0 {
		jobTTLSeconds = defaultJobTTLSeconds
	}
	return &KubernetesBackend{client: client, namespace: namespace, jobTTL: jobTTLSeconds}
}

// StageBundle creates a ConfigMap holding the run's input files.
func (b *KubernetesBackend) StageBundle(ctx context.Context, name string, files map[string]string) (BundleHandle, error) {
	if len(files) == 0 {
		return BundleHandle{}, appErr.New(appErr.BundleStageFailed).WithMessage("bundle files must not be empty")
	}
	configMap := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Data:       files,
	}
	if _, err := b.client.CoreV1().ConfigMaps(b.namespace).Create(ctx, configMap, metav1.CreateOptions{}); err != nil {
		return BundleHandle{}, appErr.Wrapf(err, appErr.BackendUnavailable, "create configmap %s failed", name)
	}
	logger.Info(ctx, "staged test bundle", zap.String("configmap", name), zap.Int("files", len(files)))
	return BundleHandle{Name: name}, nil
}

// Launch creates a one-shot Job bound to the staged bundle. restartPolicy is
// Never and backoffLimit is zero: a failed unit is terminal, not retried.
func (b *KubernetesBackend) Launch(ctx context.Context, name string, spec LaunchSpec) (UnitHandle, error) {
	if spec.Image == "" || len(spec.Command) == 0 {
		return UnitHandle{}, appErr.New(appErr.LaunchRejected).WithMessage("image and command are required")
	}
	if spec.Bundle.Name == "" {
		return UnitHandle{}, appErr.New(appErr.LaunchRejected).WithMessage("bundle handle is required")
	}

	backoffLimit := int32(0)
	jobTTL := b.jobTTL
	activeDeadline := int64(spec.Deadline / time.Second)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &jobTTL,
			ActiveDeadlineSeconds:   &activeDeadline,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": name},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    runnerContainerName,
							Image:   spec.Image,
							Command: spec.Command,
							VolumeMounts: []corev1.VolumeMount{
								{Name: bundleVolumeName, MountPath: spec.MountPath},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: bundleVolumeName,
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: spec.Bundle.Name},
								},
							},
						},
					},
				},
			},
		},
	}

	if _, err := b.client.BatchV1().Jobs(b.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return UnitHandle{}, appErr.Wrapf(err, appErr.BackendUnavailable, "create job %s failed", name)
	}
	logger.Info(ctx, "launched test job", zap.String("job", name), zap.String("image", spec.Image))
	return UnitHandle{Name: name}, nil
}

// AwaitTerminal polls the job's status counters until one becomes positive or
// the deadline elapses.
func (b *KubernetesBackend) AwaitTerminal(ctx context.Context, unit UnitHandle, deadline, pollInterval time.Duration) (TerminalState, string, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := b.client.BatchV1().Jobs(b.namespace).Get(ctx, unit.Name, metav1.GetOptions{})
		if err != nil {
			return "", "", appErr.Wrapf(err, appErr.StatusReadFailed, "read job status %s failed", unit.Name)
		}
		if job.Status.Succeeded > 0 {
			logger.Info(ctx, "job completed", zap.String("job", unit.Name))
			return StateSucceeded, b.FetchOutput(ctx, unit), nil
		}
		if job.Status.Failed > 0 {
			logger.Warn(ctx, "job failed", zap.String("job", unit.Name))
			return StateFailed, b.FetchOutput(ctx, unit), nil
		}

		select {
		case <-ctx.Done():
			logger.Warn(ctx, "context done waiting for job", zap.String("job", unit.Name))
			return StateTimedOut, TimeoutMessage, nil
		case <-timer.C:
			logger.Warn(ctx, "timeout waiting for job completion", zap.String("job", unit.Name))
			return StateTimedOut, TimeoutMessage, nil
		case <-ticker.C:
		}
	}
}

// FetchOutput reads the captured log stream of the first pod carrying the
// unit's label. A missing pod or log degrades to a placeholder string.
func (b *KubernetesBackend) FetchOutput(ctx context.Context, unit UnitHandle) string {
	pods, err := b.client.CoreV1().Pods(b.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + unit.Name,
	})
	if err != nil {
		return fmt.Sprintf("Error retrieving logs: %v", err)
	}
	if len(pods.Items) == 0 {
		return "No pods found for the job"
	}

	podName := pods.Items[0].Name
	raw, err := b.client.CoreV1().Pods(b.namespace).GetLogs(podName, &corev1.PodLogOptions{}).Do(ctx).Raw()
	if err != nil {
		return fmt.Sprintf("Error retrieving logs: %v", err)
	}
	return string(raw)
}

// Reclaim deletes the bundle's ConfigMap. Failures are logged only.
func (b *KubernetesBackend) Reclaim(ctx context.Context, bundle BundleHandle) {
	if bundle.Name == "" {
		return
	}
	err := b.client.CoreV1().ConfigMaps(b.namespace).Delete(ctx, bundle.Name, metav1.DeleteOptions{})
	if err != nil {
		logger.Warn(ctx, "reclaim bundle failed", zap.String("configmap", bundle.Name), zap.Error(err))
		return
	}
	logger.Info(ctx, "reclaimed bundle", zap.String("configmap", bundle.Name))
}

// Status pings the API server.
func (b *KubernetesBackend) Status(ctx context.Context) Status {
	if _, err := b.client.Discovery().ServerVersion(); err != nil {
		return StatusUnreachable
	}
	return StatusLiveConnected
}
