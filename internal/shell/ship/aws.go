package ship

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// defaultFleetTag marks instances belonging to the fleet when the
// description does not name one.
const defaultFleetTag = "flotilla"

// AWSProvider resolves ships from running EC2 instances carrying the
// fleet tag. The ship name comes from the instance's Name tag, falling
// back to the instance ID.
type AWSProvider struct {
	accessKeyID     string
	secretAccessKey string
	config          description.ShipProviderConfig
	defaults        description.ShipDefaults
	logger          *slog.Logger
}

// NewAWSProvider creates a new EC2-backed ship provider.
func NewAWSProvider(accessKeyID, secretAccessKey string, config description.ShipProviderConfig,
	defaults description.ShipDefaults, logger *slog.Logger) *AWSProvider {
	return &AWSProvider{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		config:          config,
		defaults:        defaults,
		logger:          logger.With("ship_provider", "aws"),
	}
}

func (p *AWSProvider) newClient() *ec2.Client {
	return ec2.New(ec2.Options{
		Region:      p.config.Region,
		Credentials: credentials.NewStaticCredentialsProvider(p.accessKeyID, p.secretAccessKey, ""),
	})
}

// Ships lists running instances tagged with the fleet tag.
func (p *AWSProvider) Ships(ctx context.Context) (map[string]*environment.Ship, error) {
	tag := p.config.Tag
	if tag == "" {
		tag = defaultFleetTag
	}

	client := p.newClient()
	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag-key"), Values: []string{tag}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describe instances: %w", err)
	}

	ships := make(map[string]*environment.Ship)
	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if instance.PublicIpAddress == nil {
				continue
			}
			name := aws.ToString(instance.InstanceId)
			for _, t := range instance.Tags {
				if aws.ToString(t.Key) == "Name" && aws.ToString(t.Value) != "" {
					name = aws.ToString(t.Value)
				}
			}
			ship := &environment.Ship{
				Name:     name,
				IP:       aws.ToString(instance.PublicIpAddress),
				Provider: "aws",
			}
			applyDefaults(ship, p.defaults)
			ships[name] = ship
		}
	}

	p.logger.Debug("resolved ships", "count", len(ships), "tag", tag, "region", p.config.Region)
	if len(ships) == 0 {
		return nil, fmt.Errorf("no running instances tagged %q in %s: %w", tag, p.config.Region, ErrNoShips)
	}
	return ships, nil
}
