// Package ec2 implements the gateway interfaces over the AWS EC2 API.
// It owns request translation and error classification; rate-limited
// calls are retried with capped exponential backoff, everything else is
// surfaced to the caller unchanged.
package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stagepool/stagepool/internal/config"
	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/util/retry"
)

// RealClient talks to the AWS EC2 API. It implements gateway.Client.
type RealClient struct {
	api       *awsec2.Client
	retryOpts []retry.Option
}

var _ gateway.Client = (*RealClient)(nil)

// NewRealClient builds a client from an AWS config.
func NewRealClient(cfg aws.Config, timeouts *config.Timeouts) *RealClient {
	return &RealClient{
		api: awsec2.NewFromConfig(cfg),
		retryOpts: []retry.Option{
			retry.WithMaxAttempts(timeouts.RetryMaxAttempts),
			retry.WithInitialDelay(timeouts.RetryInitialDelay),
		},
	}
}

// call runs fn, retrying rate-limited failures and aborting on all others.
func (c *RealClient) call(ctx context.Context, op string, fn func() error) error {
	return retry.Do(ctx, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		classified := classify(op, err)
		if gateway.IsRateLimited(classified) {
			return classified
		}
		return retry.Fatal(classified)
	}, c.retryOpts...)
}

// CreateServer launches one instance and returns its initial description.
func (c *RealClient) CreateServer(ctx context.Context, opts gateway.CreateServerOpts) (*gateway.ServerInfo, error) {
	input := &awsec2.RunInstancesInput{
		ImageId:      aws.String(opts.ImageID),
		InstanceType: types.InstanceType(opts.InstanceClass),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if opts.KeyName != "" {
		input.KeyName = aws.String(opts.KeyName)
	}
	if opts.IngressPolicyID != "" {
		input.SecurityGroupIds = []string{opts.IngressPolicyID}
	}
	if opts.Zone != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(opts.Zone)}
	}
	if len(opts.Tags) > 0 {
		input.TagSpecifications = []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         toEC2Tags(opts.Tags),
		}}
	}

	var out *awsec2.RunInstancesOutput
	err := c.call(ctx, "CreateServer", func() error {
		var err error
		out, err = c.api.RunInstances(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.Instances) == 0 {
		return nil, &gateway.PermanentAPIError{Op: "CreateServer", Err: fmt.Errorf("no instance in response")}
	}
	return serverInfoFromInstance(out.Instances[0]), nil
}

// DescribeServer returns the current description of one instance.
func (c *RealClient) DescribeServer(ctx context.Context, id string) (*gateway.ServerInfo, error) {
	var out *awsec2.DescribeInstancesOutput
	err := c.call(ctx, "DescribeServer", func() error {
		var err error
		out, err = c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
			InstanceIds: []string{id},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return serverInfoFromInstance(inst), nil
		}
	}
	return nil, &gateway.PermanentAPIError{Op: "DescribeServer", Err: fmt.Errorf("instance %s not found", id)}
}

// DescribeServersByTag lists instances matching every given tag.
func (c *RealClient) DescribeServersByTag(ctx context.Context, tagFilter map[string]string) ([]*gateway.ServerInfo, error) {
	input := &awsec2.DescribeInstancesInput{Filters: tagFilters(tagFilter)}

	var infos []*gateway.ServerInfo
	err := c.call(ctx, "DescribeServersByTag", func() error {
		infos = infos[:0]
		paginator := awsec2.NewDescribeInstancesPaginator(c.api, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, res := range page.Reservations {
				for _, inst := range res.Instances {
					infos = append(infos, serverInfoFromInstance(inst))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// StartServers issues a bulk start. Confirmation is the caller's job.
func (c *RealClient) StartServers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.call(ctx, "StartServers", func() error {
		_, err := c.api.StartInstances(ctx, &awsec2.StartInstancesInput{InstanceIds: ids})
		return err
	})
}

// StopServers issues a bulk stop.
func (c *RealClient) StopServers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.call(ctx, "StopServers", func() error {
		_, err := c.api.StopInstances(ctx, &awsec2.StopInstancesInput{InstanceIds: ids})
		return err
	})
}

// TerminateServers issues a bulk terminate.
func (c *RealClient) TerminateServers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.call(ctx, "TerminateServers", func() error {
		_, err := c.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{InstanceIds: ids})
		return err
	})
}

// CreateVolume creates a block-storage volume.
func (c *RealClient) CreateVolume(ctx context.Context, opts gateway.CreateVolumeOpts) (*gateway.VolumeInfo, error) {
	input := &awsec2.CreateVolumeInput{
		AvailabilityZone: aws.String(opts.Zone),
		Size:             aws.Int32(opts.SizeGiB),
		VolumeType:       types.VolumeTypeGp3,
	}
	if len(opts.Tags) > 0 {
		input.TagSpecifications = []types.TagSpecification{{
			ResourceType: types.ResourceTypeVolume,
			Tags:         toEC2Tags(opts.Tags),
		}}
	}

	var out *awsec2.CreateVolumeOutput
	err := c.call(ctx, "CreateVolume", func() error {
		var err error
		out, err = c.api.CreateVolume(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &gateway.VolumeInfo{
		ID:      aws.ToString(out.VolumeId),
		Zone:    aws.ToString(out.AvailabilityZone),
		State:   string(out.State),
		SizeGiB: aws.ToInt32(out.Size),
		Tags:    opts.Tags,
	}, nil
}

// DescribeVolume returns the current description of one volume.
func (c *RealClient) DescribeVolume(ctx context.Context, id string) (*gateway.VolumeInfo, error) {
	var out *awsec2.DescribeVolumesOutput
	err := c.call(ctx, "DescribeVolume", func() error {
		var err error
		out, err = c.api.DescribeVolumes(ctx, &awsec2.DescribeVolumesInput{
			VolumeIds: []string{id},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.Volumes) == 0 {
		return nil, &gateway.PermanentAPIError{Op: "DescribeVolume", Err: fmt.Errorf("volume %s not found", id)}
	}
	return volumeInfoFromVolume(out.Volumes[0]), nil
}

// DescribeVolumesByTag lists volumes matching every given tag.
func (c *RealClient) DescribeVolumesByTag(ctx context.Context, tagFilter map[string]string) ([]*gateway.VolumeInfo, error) {
	input := &awsec2.DescribeVolumesInput{Filters: tagFilters(tagFilter)}

	var infos []*gateway.VolumeInfo
	err := c.call(ctx, "DescribeVolumesByTag", func() error {
		infos = infos[:0]
		paginator := awsec2.NewDescribeVolumesPaginator(c.api, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, vol := range page.Volumes {
				infos = append(infos, volumeInfoFromVolume(vol))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// AttachVolume attaches a volume to a server at the given device name.
func (c *RealClient) AttachVolume(ctx context.Context, volumeID, serverID, device string) error {
	return c.call(ctx, "AttachVolume", func() error {
		_, err := c.api.AttachVolume(ctx, &awsec2.AttachVolumeInput{
			VolumeId:   aws.String(volumeID),
			InstanceId: aws.String(serverID),
			Device:     aws.String(device),
		})
		return err
	})
}

// DetachVolume detaches a volume from whatever server holds it.
func (c *RealClient) DetachVolume(ctx context.Context, volumeID string) error {
	return c.call(ctx, "DetachVolume", func() error {
		_, err := c.api.DetachVolume(ctx, &awsec2.DetachVolumeInput{
			VolumeId: aws.String(volumeID),
		})
		return err
	})
}

// DeleteVolume deletes a detached volume.
func (c *RealClient) DeleteVolume(ctx context.Context, volumeID string) error {
	return c.call(ctx, "DeleteVolume", func() error {
		_, err := c.api.DeleteVolume(ctx, &awsec2.DeleteVolumeInput{
			VolumeId: aws.String(volumeID),
		})
		return err
	})
}

// DescribeImages lists machine images matching the filter.
func (c *RealClient) DescribeImages(ctx context.Context, filter gateway.ImageFilter) ([]gateway.ImageInfo, error) {
	input := &awsec2.DescribeImagesInput{
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{filter.NamePattern}},
			{Name: aws.String("architecture"), Values: []string{filter.Architecture}},
			{Name: aws.String("root-device-type"), Values: []string{filter.RootDeviceType}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	}

	var out *awsec2.DescribeImagesOutput
	err := c.call(ctx, "DescribeImages", func() error {
		var err error
		out, err = c.api.DescribeImages(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	infos := make([]gateway.ImageInfo, 0, len(out.Images))
	for _, img := range out.Images {
		infos = append(infos, gateway.ImageInfo{
			ID:             aws.ToString(img.ImageId),
			Name:           aws.ToString(img.Name),
			Architecture:   string(img.Architecture),
			RootDeviceType: string(img.RootDeviceType),
		})
	}
	return infos, nil
}

// ImportKeyPair registers a public key under the given name.
func (c *RealClient) ImportKeyPair(ctx context.Context, name string, publicKey []byte) error {
	return c.call(ctx, "ImportKeyPair", func() error {
		_, err := c.api.ImportKeyPair(ctx, &awsec2.ImportKeyPairInput{
			KeyName:           aws.String(name),
			PublicKeyMaterial: publicKey,
		})
		return err
	})
}

// KeyPairExists reports whether a key pair with the given name is
// registered remotely.
func (c *RealClient) KeyPairExists(ctx context.Context, name string) (bool, error) {
	err := c.call(ctx, "KeyPairExists", func() error {
		_, err := c.api.DescribeKeyPairs(ctx, &awsec2.DescribeKeyPairsInput{
			KeyNames: []string{name},
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteKeyPair removes a registered key pair. Missing keys are not an
// error.
func (c *RealClient) DeleteKeyPair(ctx context.Context, name string) error {
	err := c.call(ctx, "DeleteKeyPair", func() error {
		_, err := c.api.DeleteKeyPair(ctx, &awsec2.DeleteKeyPairInput{
			KeyName: aws.String(name),
		})
		return err
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// EnsureIngressPolicy returns the id of the named security group, creating
// it with inbound TCP rules for the given ports if it does not exist.
func (c *RealClient) EnsureIngressPolicy(ctx context.Context, name, description string, ports []int32) (string, error) {
	var described *awsec2.DescribeSecurityGroupsOutput
	err := c.call(ctx, "EnsureIngressPolicy", func() error {
		var err error
		described, err = c.api.DescribeSecurityGroups(ctx, &awsec2.DescribeSecurityGroupsInput{
			Filters: []types.Filter{
				{Name: aws.String("group-name"), Values: []string{name}},
			},
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if len(described.SecurityGroups) > 0 {
		return aws.ToString(described.SecurityGroups[0].GroupId), nil
	}

	var created *awsec2.CreateSecurityGroupOutput
	err = c.call(ctx, "EnsureIngressPolicy", func() error {
		var err error
		created, err = c.api.CreateSecurityGroup(ctx, &awsec2.CreateSecurityGroupInput{
			GroupName:   aws.String(name),
			Description: aws.String(description),
		})
		return err
	})
	if err != nil {
		return "", err
	}
	groupID := aws.ToString(created.GroupId)

	perms := make([]types.IpPermission, 0, len(ports))
	for _, port := range ports {
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		})
	}
	err = c.call(ctx, "EnsureIngressPolicy", func() error {
		_, err := c.api.AuthorizeSecurityGroupIngress(ctx, &awsec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: perms,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

// DeleteIngressPolicy removes the named security group. Missing groups are
// not an error.
func (c *RealClient) DeleteIngressPolicy(ctx context.Context, name string) error {
	err := c.call(ctx, "DeleteIngressPolicy", func() error {
		_, err := c.api.DeleteSecurityGroup(ctx, &awsec2.DeleteSecurityGroupInput{
			GroupName: aws.String(name),
		})
		return err
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// AvailableZones lists the zones currently accepting placements.
func (c *RealClient) AvailableZones(ctx context.Context) ([]string, error) {
	var out *awsec2.DescribeAvailabilityZonesOutput
	err := c.call(ctx, "AvailableZones", func() error {
		var err error
		out, err = c.api.DescribeAvailabilityZones(ctx, &awsec2.DescribeAvailabilityZonesInput{})
		return err
	})
	if err != nil {
		return nil, err
	}
	zones := make([]string, 0, len(out.AvailabilityZones))
	for _, az := range out.AvailabilityZones {
		if az.State == types.AvailabilityZoneStateAvailable {
			zones = append(zones, aws.ToString(az.ZoneName))
		}
	}
	return zones, nil
}

func serverInfoFromInstance(inst types.Instance) *gateway.ServerInfo {
	info := &gateway.ServerInfo{
		ID:            aws.ToString(inst.InstanceId),
		KeyName:       aws.ToString(inst.KeyName),
		InstanceClass: string(inst.InstanceType),
		Tags:          fromEC2Tags(inst.Tags),
	}
	if inst.Placement != nil {
		info.Zone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.State != nil {
		info.State = string(inst.State.Name)
	}
	if addr := aws.ToString(inst.PublicDnsName); addr != "" {
		info.PublicAddr = addr
	} else {
		info.PublicAddr = aws.ToString(inst.PublicIpAddress)
	}
	return info
}

func volumeInfoFromVolume(vol types.Volume) *gateway.VolumeInfo {
	info := &gateway.VolumeInfo{
		ID:      aws.ToString(vol.VolumeId),
		Zone:    aws.ToString(vol.AvailabilityZone),
		State:   string(vol.State),
		SizeGiB: aws.ToInt32(vol.Size),
		Tags:    fromEC2Tags(vol.Tags),
	}
	if len(vol.Attachments) > 0 {
		att := vol.Attachments[0]
		info.AttachedTo = aws.ToString(att.InstanceId)
		info.Device = aws.ToString(att.Device)
		info.AttachState = string(att.State)
	}
	return info
}

func tagFilters(tagFilter map[string]string) []types.Filter {
	filters := make([]types.Filter, 0, len(tagFilter))
	for k, v := range tagFilter {
		filters = append(filters, types.Filter{
			Name:   aws.String("tag:" + k),
			Values: []string{v},
		})
	}
	return filters
}

func toEC2Tags(tags map[string]string) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func fromEC2Tags(tags []types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
