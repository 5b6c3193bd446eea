package provider

import (
	"context"
	"time"

	"oci-instance-grabber/allocator"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
)

// Launch submits one launch request and maps the result into an Outcome.
// Rejections become classified Failures rather than errors so the
// acquisition loop can keep cycling without error plumbing.
func (c *Client) Launch(ctx context.Context, cand allocator.Candidate) allocator.Outcome {
	resp, err := c.compute.LaunchInstance(ctx, core.LaunchInstanceRequest{
		LaunchInstanceDetails: launchDetails(cand),
	})
	if err != nil {
		return allocator.Outcome{Failure: failureFrom(cand, err)}
	}
	return allocator.Outcome{InstanceID: *resp.Instance.Id}
}

func launchDetails(cand allocator.Candidate) core.LaunchInstanceDetails {
	return core.LaunchInstanceDetails{
		AvailabilityDomain: common.String(cand.AvailabilityDomain),
		CompartmentId:      common.String(cand.CompartmentID),
		Shape:              common.String(cand.Shape),
		DisplayName:        common.String(cand.DisplayName),
		ShapeConfig: &core.LaunchInstanceShapeConfigDetails{
			Ocpus:       common.Float32(cand.Ocpus),
			MemoryInGBs: common.Float32(cand.MemoryInGBs),
		},
		SourceDetails: core.InstanceSourceViaImageDetails{
			ImageId: common.String(cand.ImageID),
		},
		CreateVnicDetails: &core.CreateVnicDetails{
			SubnetId:       common.String(cand.SubnetID),
			AssignPublicIp: common.Bool(true),
		},
		Metadata: map[string]string{"ssh_authorized_keys": cand.SSHPublicKey},
		AvailabilityConfig: &core.LaunchInstanceAvailabilityConfigDetails{
			RecoveryAction: core.LaunchInstanceAvailabilityConfigDetailsRecoveryActionRestoreInstance,
		},
		InstanceOptions: &core.InstanceOptions{
			AreLegacyImdsEndpointsDisabled: common.Bool(true),
		},
	}
}

// failureFrom keeps the service HTTP status when the SDK reports one;
// transport-level errors carry status 0 and land in the long-backoff class.
func failureFrom(cand allocator.Candidate, err error) *allocator.Failure {
	status := 0
	msg := err.Error()
	if se, ok := common.IsServiceError(err); ok {
		status = se.GetHTTPStatusCode()
		msg = se.GetMessage()
	}
	return &allocator.Failure{
		Classification:     allocator.Classify(status),
		StatusCode:         status,
		Message:            msg,
		Timestamp:          time.Now(),
		AvailabilityDomain: cand.AvailabilityDomain,
	}
}
