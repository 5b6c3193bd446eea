package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/rs/zerolog/log"
)

// Client bundles the OCI API clients the grabber needs: identity for
// availability domains, compute for images and launches, virtual network
// for VCN/subnet resolution.
type Client struct {
	tenancy  string
	identity identity.IdentityClient
	compute  core.ComputeClient
	network  core.VirtualNetworkClient
}

// New builds a client from the local OCI config file (~/.oci/config). An
// empty profile uses the SDK default.
func New(profile string) (*Client, error) {
	var cp common.ConfigurationProvider = common.DefaultConfigProvider()
	if profile != "" {
		cp = common.CustomProfileConfigProvider("", profile)
	}
	tenancy, err := cp.TenancyOCID()
	if err != nil {
		return nil, fmt.Errorf("provider: read tenancy from OCI config: %w", err)
	}
	idc, err := identity.NewIdentityClientWithConfigurationProvider(cp)
	if err != nil {
		return nil, fmt.Errorf("provider: identity client: %w", err)
	}
	cc, err := core.NewComputeClientWithConfigurationProvider(cp)
	if err != nil {
		return nil, fmt.Errorf("provider: compute client: %w", err)
	}
	nc, err := core.NewVirtualNetworkClientWithConfigurationProvider(cp)
	if err != nil {
		return nil, fmt.Errorf("provider: virtual network client: %w", err)
	}
	return &Client{tenancy: tenancy, identity: idc, compute: cc, network: nc}, nil
}

// Tenancy returns the tenancy OCID, used as the compartment when no explicit
// compartment is configured.
func (c *Client) Tenancy() string {
	return c.tenancy
}

// ListAvailabilityDomains returns AD names in the order the API reports
// them. That order is preserved all the way through the acquisition loop.
func (c *Client) ListAvailabilityDomains(ctx context.Context, compartmentID string) ([]string, error) {
	resp, err := c.identity.ListAvailabilityDomains(ctx, identity.ListAvailabilityDomainsRequest{
		CompartmentId: common.String(compartmentID),
	})
	if err != nil {
		return nil, fmt.Errorf("provider: list availability domains: %w", err)
	}
	names := make([]string, 0, len(resp.Items))
	for _, ad := range resp.Items {
		if ad.Name != nil {
			names = append(names, *ad.Name)
		}
	}
	log.Debug().Strs("availabilityDomains", names).Msg("resolved availability domains")
	return names, nil
}

// ResolveNetwork picks the compartment's first VCN and that VCN's first
// subnet, returning the subnet OCID.
func (c *Client) ResolveNetwork(ctx context.Context, compartmentID string) (string, error) {
	vcns, err := c.network.ListVcns(ctx, core.ListVcnsRequest{
		CompartmentId: common.String(compartmentID),
	})
	if err != nil {
		return "", fmt.Errorf("provider: list vcns: %w", err)
	}
	if len(vcns.Items) == 0 {
		return "", fmt.Errorf("provider: no VCN in compartment %s", compartmentID)
	}
	subnets, err := c.network.ListSubnets(ctx, core.ListSubnetsRequest{
		CompartmentId: common.String(compartmentID),
		VcnId:         vcns.Items[0].Id,
	})
	if err != nil {
		return "", fmt.Errorf("provider: list subnets: %w", err)
	}
	if len(subnets.Items) == 0 {
		return "", fmt.Errorf("provider: no subnet in VCN %s", *vcns.Items[0].Id)
	}
	log.Debug().Str("subnetId", *subnets.Items[0].Id).Msg("resolved subnet")
	return *subnets.Items[0].Id, nil
}

// ResolveImage returns the newest Ubuntu aarch64 non-Minimal image usable
// with the shape.
func (c *Client) ResolveImage(ctx context.Context, compartmentID, shape string) (string, error) {
	resp, err := c.compute.ListImages(ctx, core.ListImagesRequest{
		CompartmentId: common.String(compartmentID),
		Shape:         common.String(shape),
	})
	if err != nil {
		return "", fmt.Errorf("provider: list images: %w", err)
	}
	img := pickLatestUbuntu(resp.Items)
	if img == nil {
		return "", fmt.Errorf("provider: no Ubuntu aarch64 image for shape %s", shape)
	}
	log.Debug().Str("imageId", *img.Id).Str("displayName", *img.DisplayName).Msg("resolved image")
	return *img.Id, nil
}

func pickLatestUbuntu(images []core.Image) *core.Image {
	var best *core.Image
	for i := range images {
		img := &images[i]
		if img.DisplayName == nil || img.Id == nil || img.TimeCreated == nil {
			continue
		}
		name := *img.DisplayName
		if !strings.Contains(name, "Ubuntu") || !strings.Contains(name, "aarch64") || strings.Contains(name, "Minimal") {
			continue
		}
		if best == nil || img.TimeCreated.After(best.TimeCreated.Time) {
			best = img
		}
	}
	return best
}
