package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/infraviz/internal/ir"
)

const vpcProgram = `import * as aws from "@pulumi/aws";

const vpc = new aws.ec2.Vpc("v", { cidrBlock: "10.0.0.0/16" });
const subnet = new aws.ec2.Subnet("s", { vpcId: vpc.id, cidrBlock: "10.0.1.0/24" });
`

func TestParseProgram_SingleResource(t *testing.T) {
	code := `const db = new aws.rds.Instance("db", { engine: "postgres" });`

	events := ParseProgram(code)
	require.Len(t, events, 1)
	assert.Equal(t, "urn:pulumi:dev::infra::aws:rds/instance:Instance::db", events[0].URN)
	assert.Equal(t, "aws:rds/instance:Instance", events[0].Type)
	assert.Equal(t, ir.OpCreate, events[0].Op)
	assert.Empty(t, events[0].Dependencies)
}

func TestParseProgram_PropertyReference(t *testing.T) {
	events := ParseProgram(vpcProgram)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].Dependencies)
	assert.Equal(t, []string{events[0].URN}, events[1].Dependencies)
}

func TestParseProgram_DependsOnList(t *testing.T) {
	code := `
const bucket = new aws.s3.Bucket('assets');
const role = new aws.iam.Role(` + "`" + `app-role` + "`" + `, {});
const fn = new aws.lambda.Function("handler", {
    role: role.arn,
}, { dependsOn: [bucket] });
`
	events := ParseProgram(code)
	require.Len(t, events, 3)
	assert.Equal(t, "urn:pulumi:dev::infra::aws:iam/role:Role::app-role", events[1].URN)
	assert.ElementsMatch(t, []string{events[0].URN, events[1].URN}, events[2].Dependencies)
}

func TestParseProgram_NoForwardDependencies(t *testing.T) {
	code := `
const first = new aws.s3.Bucket("first", { tags: { peer: second.id } });
const second = new aws.s3.Bucket("second");
`
	events := ParseProgram(code)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].Dependencies)
	assert.Empty(t, events[1].Dependencies)
}

func TestParseProgram_WordBoundaries(t *testing.T) {
	code := `
const vpc = new aws.ec2.Vpc("main");
const vpcPeer = new aws.ec2.Vpc("peer", { tags: { name: "myvpc" } });
`
	events := ParseProgram(code)
	require.Len(t, events, 2)
	assert.Empty(t, events[1].Dependencies)
}

func TestParseProgram_DuplicateURNKeepsFirst(t *testing.T) {
	code := `
const a = new aws.s3.Bucket("data", { acl: "private" });
let b = new aws.s3.Bucket("data", { acl: "public-read" });
var c = new gcp.storage.Bucket("data");
`
	events := ParseProgram(code)
	require.Len(t, events, 2)
	assert.Equal(t, "urn:pulumi:dev::infra::aws:s3/bucket:Bucket::data", events[0].URN)
	assert.Equal(t, "urn:pulumi:dev::infra::gcp:storage/bucket:Bucket::data", events[1].URN)
}

func TestParseProgram_Idempotent(t *testing.T) {
	assert.Equal(t, ParseProgram(vpcProgram), ParseProgram(vpcProgram))
}

func TestParseProgram_Empty(t *testing.T) {
	assert.Empty(t, ParseProgram(""))
	assert.Empty(t, ParseProgram(`console.log("no resources here");`))
}

func TestParseProgram_DependenciesReferenceEarlierEvents(t *testing.T) {
	code := `
const vpc = new aws.ec2.Vpc("v");
const sg = new aws.ec2.SecurityGroup("sg", { vpcId: vpc.id });
const subnet = new aws.ec2.Subnet("s", { vpcId: vpc.id });
const db = new aws.rds.Instance("db", { vpcSecurityGroupIds: [sg.id], dbSubnetGroupName: subnet.id });
`
	events := ParseProgram(code)
	require.Len(t, events, 4)

	position := make(map[string]int)
	for i, ev := range events {
		position[ev.URN] = i
		for _, dep := range ev.Dependencies {
			j, ok := position[dep]
			require.True(t, ok, "dependency %s of %s is not an earlier event", dep, ev.URN)
			assert.Less(t, j, i)
			assert.NotEqual(t, ev.URN, dep)
		}
	}
	assert.Len(t, events[3].Dependencies, 2)
}

func TestResourceType(t *testing.T) {
	assert.Equal(t, "aws:ec2/securitygroup:SecurityGroup", ResourceType("aws", "ec2", "SecurityGroup"))
	assert.Equal(t, "gcp:compute/instance:Instance", ResourceType("gcp", "Compute", "Instance"))
}

func TestStatic_Extract(t *testing.T) {
	events, err := Static{}.Extract(context.Background(), Target{Program: vpcProgram})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
