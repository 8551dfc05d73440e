// Package cost attaches static monthly cost estimates to graph nodes.
package cost

import (
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/picklr-io/infraviz/internal/ir"
)

// defaultMonthlyUSD is a rough on-demand monthly price for the smallest
// common configuration of each resource type.
var defaultMonthlyUSD = map[string]float64{
	"aws:ec2/instance:Instance":                   8.47,
	"aws:ec2/natgateway:NatGateway":               32.85,
	"aws:ec2/eip:Eip":                             3.65,
	"aws:ec2/vpc:Vpc":                             0,
	"aws:ec2/subnet:Subnet":                       0,
	"aws:ec2/securitygroup:SecurityGroup":         0,
	"aws:ec2/internetgateway:InternetGateway":     0,
	"aws:ec2/routetable:RouteTable":               0,
	"aws:rds/instance:Instance":                   15.33,
	"aws:rds/cluster:Cluster":                     43.80,
	"aws:s3/bucket:Bucket":                        2.30,
	"aws:s3/bucketv2:BucketV2":                    2.30,
	"aws:lambda/function:Function":                0.20,
	"aws:apigateway/restapi:RestApi":              3.50,
	"aws:apigatewayv2/api:Api":                    1.00,
	"aws:dynamodb/table:Table":                    1.25,
	"aws:elasticache/cluster:Cluster":             12.41,
	"aws:lb/loadbalancer:LoadBalancer":            16.43,
	"aws:alb/loadbalancer:LoadBalancer":           16.43,
	"aws:ecs/cluster:Cluster":                     0,
	"aws:ecs/service:Service":                     9.01,
	"aws:eks/cluster:Cluster":                     73.00,
	"aws:cloudfront/distribution:Distribution":    1.00,
	"aws:sqs/queue:Queue":                         0.40,
	"aws:sns/topic:Topic":                         0.50,
	"aws:iam/role:Role":                           0,
	"aws:route53/zone:Zone":                       0.50,
	"aws:secretsmanager/secret:Secret":            0.40,
	"gcp:compute/instance:Instance":               6.11,
	"gcp:storage/bucket:Bucket":                   2.00,
	"gcp:sql/databaseinstance:DatabaseInstance":   9.37,
	"gcp:cloudrun/service:Service":                0,
	"gcp:container/cluster:Cluster":               73.00,
	"gcp:pubsub/topic:Topic":                      0.40,
	"azure:compute/virtualmachine:VirtualMachine": 7.59,
	"azure:storage/account:Account":               2.08,
}

// Table maps resource types to monthly USD estimates. Lookups ignore case.
type Table struct {
	prices map[string]float64
}

// DefaultTable returns a table holding the built-in estimates.
func DefaultTable() *Table {
	t := &Table{prices: make(map[string]float64, len(defaultMonthlyUSD))}
	for k, v := range defaultMonthlyUSD {
		t.Set(k, v)
	}
	return t
}

// Set records the estimate for a resource type, replacing any existing one.
func (t *Table) Set(resourceType string, monthly float64) {
	t.prices[strings.ToLower(resourceType)] = monthly
}

// Estimate returns the monthly estimate for resourceType. The boolean is
// false when the type is unknown; an unknown cost is not a zero cost.
func (t *Table) Estimate(resourceType string) (float64, bool) {
	v, ok := t.prices[strings.ToLower(resourceType)]
	return v, ok
}

// Annotate sets EstimatedCost on every node with a known type and clears it
// on the rest.
func (t *Table) Annotate(nodes []ir.GraphNode) {
	for i := range nodes {
		nodes[i].EstimatedCost = nil
		if v, ok := t.Estimate(nodes[i].ResourceType); ok {
			nodes[i].EstimatedCost = &v
		}
	}
}

// Total sums the known costs of nodes, rounded to cents. Nodes with an
// unknown cost are skipped.
func Total(nodes []ir.GraphNode) float64 {
	var sum float64
	for _, n := range nodes {
		if n.EstimatedCost != nil {
			sum += *n.EstimatedCost
		}
	}
	return math.Round(sum*100) / 100
}

type overrideFile struct {
	Costs map[string]float64 `toml:"costs"`
}

// LoadOverrides merges estimates from a TOML file of the form
//
//	[costs]
//	"aws:s3/bucket:Bucket" = 5.0
func (t *Table) LoadOverrides(path string) error {
	var f overrideFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("failed to load cost overrides from %s: %w", path, err)
	}
	for k, v := range f.Costs {
		if v < 0 {
			return fmt.Errorf("negative cost %.2f for %s in %s", v, k, path)
		}
		t.Set(k, v)
	}
	return nil
}
